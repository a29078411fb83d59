// Package models defines data structures exchanged with the flowsheet backend.
package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrNotNumeric is returned when a value cannot be read as a number.
var ErrNotNumeric = errors.New("value is not numeric")

// ValueKind identifies which scalar a Value holds.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindNumber
	KindString
	KindBool
	// KindRaw holds JSON the client does not interpret (objects, arrays,
	// out-of-range numbers). It is kept verbatim and is never numeric.
	KindRaw
)

func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Value is the scalar stored in a variable's "value" field.
// The backend mostly sends numbers, but strings, booleans and null occur
// for indexed or uninitialized model variables, so the kind is kept.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	b    bool
	raw  json.RawMessage
}

// Number returns a numeric Value.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Null returns the null Value.
func Null() Value { return Value{} }

// RawValue returns a Value that carries data through unchanged.
func RawValue(data json.RawMessage) Value {
	return Value{kind: KindRaw, raw: append(json.RawMessage(nil), data...)}
}

// ParseValue interprets command-line text: numbers become numeric values,
// "true"/"false" booleans, "null" the null value, anything else a string.
func ParseValue(s string) Value {
	trimmed := strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return Number(f)
	}
	switch trimmed {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	case "null":
		return Null()
	}
	return StringValue(s)
}

// Kind reports the scalar kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Float returns the number held by v and whether v is a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Numeric coerces v to a finite number. Numbers pass through and numeric
// strings are parsed; anything else, including raw values and non-finite
// numbers, yields ErrNotNumeric.
func (v Value) Numeric() (float64, error) {
	var f float64
	switch v.kind {
	case KindNumber:
		f = v.num
	case KindString:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, v.str)
		}
		f = parsed
	default:
		return 0, fmt.Errorf("%w: %s", ErrNotNumeric, v.kind)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %v", ErrNotNumeric, f)
	}
	return f, nil
}

// Equal reports whether two values hold the same kind and scalar.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num || (math.IsNaN(v.num) && math.IsNaN(o.num))
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindRaw:
		return bytes.Equal(v.raw, o.raw)
	}
	return true
}

// String formats v for display.
func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindRaw:
		return string(v.raw)
	}
	return ""
}

// Interface returns v as a plain Go value (float64, string, bool or nil),
// for encoders that do not know about Value. Raw values are decoded into
// maps and slices.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindRaw:
		var x any
		if err := json.Unmarshal(v.raw, &x); err != nil {
			return string(v.raw)
		}
		return x
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindNumber && (math.IsNaN(v.num) || math.IsInf(v.num, 0)) {
		return nil, fmt.Errorf("cannot encode non-finite number %v", v.num)
	}
	if v.kind == KindRaw {
		return append([]byte(nil), v.raw...), nil
	}
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = Null()
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = StringValue(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			*v = RawValue(data)
			return nil
		}
		*v = Number(f)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	return v.Interface(), nil
}
