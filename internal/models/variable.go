package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
)

// Category is a variable's input category. A variable either belongs to a
// named category or is uncategorized; JSON null, a missing field and the
// empty string all mean uncategorized.
type Category struct {
	name string
}

// Uncategorized returns the category of variables without input_category.
func Uncategorized() Category { return Category{} }

// NamedCategory returns the category called name. An empty name is the
// uncategorized category.
func NamedCategory(name string) Category { return Category{name: name} }

// IsNamed reports whether c is a named category.
func (c Category) IsNamed() bool { return c.name != "" }

// Name returns the section name for c; uncategorized variables share the
// section named "".
func (c Category) Name() string { return c.name }

// MarshalJSON implements json.Marshaler. Uncategorized encodes as null.
func (c Category) MarshalJSON() ([]byte, error) {
	if !c.IsNamed() {
		return []byte("null"), nil
	}
	return json.Marshal(c.name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *Category) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*c = Uncategorized()
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("input_category must be a string or null: %w", err)
	}
	*c = NamedCategory(s)
	return nil
}

// Bound names one of a variable's bound fields.
type Bound string

const (
	LowerBound Bound = "lb"
	UpperBound Bound = "ub"
)

// ParseBound validates a bound field name.
func ParseBound(s string) (Bound, error) {
	switch Bound(s) {
	case LowerBound, UpperBound:
		return Bound(s), nil
	}
	return "", fmt.Errorf("unknown bound %q (want lb or ub)", s)
}

// Rounding is a variable's "rounding" field, kept as sent. The backend
// normally sends an integer digit count but the field is not validated
// upstream, so malformed policies must not fail decoding of the exports.
type Rounding struct {
	raw json.RawMessage
}

// RoundTo returns a policy of the given digit count.
func RoundTo(digits int) *Rounding {
	return &Rounding{raw: json.RawMessage(strconv.Itoa(digits))}
}

// Digits returns the digit count. Whole numbers are accepted whether sent
// as a JSON number (2, 2.0) or a string ("2"); anything else is an error.
func (r *Rounding) Digits() (int, error) {
	if r == nil {
		return 0, errors.New("no rounding policy")
	}
	data := bytes.TrimSpace(r.raw)
	var f float64
	switch {
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0, fmt.Errorf("rounding %s is not a number", data)
		}
		f = parsed
	default:
		if err := json.Unmarshal(data, &f); err != nil {
			return 0, fmt.Errorf("rounding %s is not a number", data)
		}
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("rounding %s is not a whole number", data)
	}
	return int(f), nil
}

// String returns the policy as sent.
func (r *Rounding) String() string {
	if r == nil {
		return "<nil>"
	}
	return string(r.raw)
}

// MarshalJSON implements json.Marshaler, writing the policy back unchanged.
func (r Rounding) MarshalJSON() ([]byte, error) {
	if len(r.raw) == 0 {
		return []byte("null"), nil
	}
	return append([]byte(nil), r.raw...), nil
}

// UnmarshalJSON implements json.Unmarshaler. It accepts any JSON value.
func (r *Rounding) UnmarshalJSON(data []byte) error {
	r.raw = append(json.RawMessage(nil), bytes.TrimSpace(data)...)
	return nil
}

// Variable is one entry of a flowsheet's exports.
type Variable struct {
	Name          string    `json:"name,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
	Description   string    `json:"description,omitempty"`
	DisplayUnits  string    `json:"display_units,omitempty"`
	Value         Value     `json:"value"`
	InputCategory Category  `json:"input_category"`
	IsInput       bool      `json:"is_input"`
	IsOutput      bool      `json:"is_output"`
	Fixed         bool      `json:"fixed"`
	IsSweep       bool      `json:"is_sweep"`
	NumSamples    int       `json:"num_samples"`
	LowerBound    *float64  `json:"lb"`
	UpperBound    *float64  `json:"ub"`
	Rounding      *Rounding `json:"rounding"`

	// Extra holds fields the client does not interpret so they survive a
	// load/solve round trip unchanged.
	Extra map[string]json.RawMessage `json:"-"`

	// order is the key order of the decoded object, reused when encoding.
	order []string
}

// variableFields mirrors Variable without its methods.
type variableFields Variable

var variableKeys = []string{
	"name", "display_name", "description", "display_units", "value",
	"input_category", "is_input", "is_output", "fixed", "is_sweep",
	"num_samples", "lb", "ub", "rounding",
}

// Label returns the most descriptive name available for display.
func (v *Variable) Label() string {
	switch {
	case v.DisplayName != "":
		return v.DisplayName
	case v.Name != "":
		return v.Name
	}
	return ""
}

// Bound returns the requested bound.
func (v *Variable) Bound(b Bound) *float64 {
	if b == LowerBound {
		return v.LowerBound
	}
	return v.UpperBound
}

// SetBound sets the requested bound.
func (v *Variable) SetBound(b Bound, value float64) {
	if b == LowerBound {
		v.LowerBound = &value
		return
	}
	v.UpperBound = &value
}

// Clone returns a deep copy of v.
func (v *Variable) Clone() *Variable {
	if v == nil {
		return nil
	}
	c := *v
	if v.LowerBound != nil {
		lb := *v.LowerBound
		c.LowerBound = &lb
	}
	if v.UpperBound != nil {
		ub := *v.UpperBound
		c.UpperBound = &ub
	}
	if v.Rounding != nil {
		c.Rounding = &Rounding{raw: append(json.RawMessage(nil), v.Rounding.raw...)}
	}
	if v.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(v.Extra))
		for k, raw := range v.Extra {
			c.Extra[k] = append(json.RawMessage(nil), raw...)
		}
	}
	return &c
}

// MarshalJSON implements json.Marshaler, merging Extra back in.
func (v Variable) MarshalJSON() ([]byte, error) {
	return marshalWithExtra(variableFields(v), v.Extra, v.order)
}

// UnmarshalJSON implements json.Unmarshaler, keeping unknown fields in Extra.
func (v *Variable) UnmarshalJSON(data []byte) error {
	var fields variableFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, order, err := splitExtra(data, variableKeys)
	if err != nil {
		return err
	}
	*v = Variable(fields)
	v.Extra = extra
	v.order = order
	return nil
}

// splitExtra returns the members of the JSON object in data whose keys are
// not listed in known, and the order in which all keys appeared.
func splitExtra(data []byte, known []string) (map[string]json.RawMessage, []string, error) {
	o := orderedmap.New()
	if err := json.Unmarshal(data, o); err != nil {
		return nil, nil, err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		all = nil
	}
	return all, o.Keys(), nil
}

// marshalWithExtra encodes v and adds the members of extra that v does not
// already define. Keys listed in order come first, in that order, followed
// by v's remaining fields in declaration order and then the remaining extra
// keys sorted.
func marshalWithExtra(v any, extra map[string]json.RawMessage, order []string) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil || (len(extra) == 0 && len(order) == 0) {
		return data, err
	}
	fields := orderedmap.New()
	if err := json.Unmarshal(data, fields); err != nil {
		return nil, err
	}
	var members map[string]json.RawMessage
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, err
	}
	var rest []string
	for k, raw := range extra {
		if _, ok := members[k]; !ok {
			members[k] = raw
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)

	out := orderedmap.New()
	out.SetEscapeHTML(false)
	add := func(k string) {
		if raw, ok := members[k]; ok {
			if _, done := out.Get(k); !done {
				out.Set(k, raw)
			}
		}
	}
	for _, k := range order {
		add(k)
	}
	for _, k := range fields.Keys() {
		add(k)
	}
	for _, k := range rest {
		add(k)
	}
	return json.Marshal(out)
}
