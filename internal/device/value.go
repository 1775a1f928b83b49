package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType is the wire type of a resource value.
type ValueType uint8

// Value types supported by the dispatcher.
const (
	TypeNone ValueType = iota
	TypeString
	TypeBool
	TypeInt
	TypeFloat
)

// String returns the type name used in listings.
func (t ValueType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "boolean"
	case TypeInt:
		return "integer"
	case TypeFloat:
		return "float"
	}
	return "none"
}

// Value is a typed resource value as exchanged with the protocol engine.
// The zero value has TypeNone and is returned for executables.
type Value struct {
	typ ValueType
	s   string
	b   bool
	i   int64
	f   float64
}

// String returns a string value.
func String(s string) Value { return Value{typ: TypeString, s: s} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{typ: TypeBool, b: b} }

// Int returns an integer value.
func Int(i int64) Value { return Value{typ: TypeInt, i: i} }

// Float returns a floating point value.
func Float(f float64) Value { return Value{typ: TypeFloat, f: f} }

// Type returns the value's type.
func (v Value) Type() ValueType { return v.typ }

// IsZero reports whether v carries no value.
func (v Value) IsZero() bool { return v.typ == TypeNone }

// AsBool decodes v as a boolean. Integers 0 and 1 and the strings "true",
// "false", "1" and "0" are accepted.
func (v Value) AsBool() (bool, error) {
	switch v.typ {
	case TypeBool:
		return v.b, nil
	case TypeInt:
		switch v.i {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case TypeFloat:
		switch v.f {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case TypeString:
		switch strings.ToLower(strings.TrimSpace(v.s)) {
		case "true", "1":
			return true, nil
		case "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: %s is not a boolean", ErrInvalidValue, v)
}

// AsInt decodes v as an integer. Floats must be integral.
func (v Value) AsInt() (int64, error) {
	switch v.typ {
	case TypeInt:
		return v.i, nil
	case TypeFloat:
		if v.f == math.Trunc(v.f) && !math.IsInf(v.f, 0) {
			return int64(v.f), nil
		}
	case TypeBool:
		if v.b {
			return 1, nil
		}
		return 0, nil
	case TypeString:
		if n, err := strconv.ParseInt(strings.TrimSpace(v.s), 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not an integer", ErrInvalidValue, v)
}

// AsFloat decodes v as a float.
func (v Value) AsFloat() (float64, error) {
	switch v.typ {
	case TypeFloat:
		return v.f, nil
	case TypeInt:
		return float64(v.i), nil
	case TypeString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64); err == nil {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %s is not a number", ErrInvalidValue, v)
}

// AsString decodes v as a string. Every value has a string form.
func (v Value) AsString() (string, error) {
	if v.typ == TypeNone {
		return "", fmt.Errorf("%w: empty value", ErrInvalidValue)
	}
	if v.typ == TypeString {
		return v.s, nil
	}
	return v.String(), nil
}

// Coerce converts v to type t.
func (v Value) Coerce(t ValueType) (Value, error) {
	switch t {
	case TypeString:
		s, err := v.AsString()
		return String(s), err
	case TypeBool:
		b, err := v.AsBool()
		return Bool(b), err
	case TypeInt:
		i, err := v.AsInt()
		return Int(i), err
	case TypeFloat:
		f, err := v.AsFloat()
		return Float(f), err
	}
	return v, nil
}

// Equal reports whether two values have the same type and content.
func (v Value) Equal(o Value) bool { return v == o }

// String formats the value for display.
func (v Value) String() string {
	switch v.typ {
	case TypeString:
		return v.s
	case TypeBool:
		return strconv.FormatBool(v.b)
	case TypeInt:
		return strconv.FormatInt(v.i, 10)
	case TypeFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	}
	return ""
}

// ParseValue interprets operator text: true/false become booleans, integral
// numbers integers, other numbers floats and anything else a string.
// Double-quoted text is always a string.
func ParseValue(s string) Value {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		if unq, err := strconv.Unquote(s); err == nil {
			return String(unq)
		}
	}
	switch s {
	case "true":
		return Bool(true)
	case "false":
		return Bool(false)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Int(i)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return Float(f)
	}
	return String(s)
}

// MarshalJSON encodes the value as its native JSON form; TypeNone is null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.typ {
	case TypeString:
		return json.Marshal(v.s)
	case TypeBool:
		return json.Marshal(v.b)
	case TypeInt:
		return json.Marshal(v.i)
	case TypeFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return nil, fmt.Errorf("%w: %v cannot be encoded", ErrInvalidValue, v.f)
		}
		return json.Marshal(v.f)
	}
	return []byte("null"), nil
}

// UnmarshalJSON decodes a JSON string, boolean or number. Numbers without a
// fraction or exponent become integers.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	switch x := raw.(type) {
	case nil:
		*v = Value{}
	case string:
		*v = String(x)
	case bool:
		*v = Bool(x)
	case json.Number:
		if i, err := x.Int64(); err == nil {
			*v = Int(i)
			return nil
		}
		f, err := x.Float64()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
		*v = Float(f)
	default:
		return fmt.Errorf("%w: unsupported JSON type %T", ErrInvalidValue, raw)
	}
	return nil
}
