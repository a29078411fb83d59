package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/iancoleman/orderedmap"
)

// Exports is an insertion-ordered mapping from variable key to Variable.
// The order is the order keys appear in the backend's JSON and is the
// traversal order used for grouping and layout.
//
// A key may map to a nil *Variable when the backend sends null for it.
type Exports struct {
	keys []string
	vars map[string]*Variable
}

// NewExports returns an empty mapping.
func NewExports() *Exports {
	return &Exports{vars: make(map[string]*Variable)}
}

// Len returns the number of keys.
func (e *Exports) Len() int {
	if e == nil {
		return 0
	}
	return len(e.keys)
}

// Keys returns the keys in insertion order.
func (e *Exports) Keys() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.keys...)
}

// Get returns the variable stored under key.
func (e *Exports) Get(key string) (*Variable, bool) {
	if e == nil {
		return nil, false
	}
	v, ok := e.vars[key]
	return v, ok
}

// Set stores v under key. New keys are appended; existing keys keep their
// position.
func (e *Exports) Set(key string, v *Variable) {
	if e.vars == nil {
		e.vars = make(map[string]*Variable)
	}
	if _, ok := e.vars[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.vars[key] = v
}

// Range calls fn for every entry in order until fn returns false.
func (e *Exports) Range(fn func(key string, v *Variable) bool) {
	if e == nil {
		return
	}
	for _, k := range e.keys {
		if !fn(k, e.vars[k]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (e *Exports) Clone() *Exports {
	if e == nil {
		return nil
	}
	c := &Exports{
		keys: append([]string(nil), e.keys...),
		vars: make(map[string]*Variable, len(e.vars)),
	}
	for k, v := range e.vars {
		c.vars[k] = v.Clone()
	}
	return c
}

// MarshalJSON implements json.Marshaler, keeping key order.
func (e *Exports) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	o := orderedmap.New()
	o.SetEscapeHTML(false)
	for _, k := range e.keys {
		o.Set(k, e.vars[k])
	}
	return json.Marshal(o)
}

// UnmarshalJSON implements json.Unmarshaler, recording key order.
func (e *Exports) UnmarshalJSON(data []byte) error {
	o := orderedmap.New()
	if err := json.Unmarshal(data, o); err != nil {
		return fmt.Errorf("exports must be a JSON object: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := NewExports()
	for _, k := range o.Keys() {
		member := bytes.TrimSpace(raw[k])
		if bytes.Equal(member, []byte("null")) {
			out.Set(k, nil)
			continue
		}
		var v Variable
		if err := json.Unmarshal(member, &v); err != nil {
			return fmt.Errorf("export %q: %w", k, err)
		}
		out.Set(k, &v)
	}
	*e = *out
	return nil
}
