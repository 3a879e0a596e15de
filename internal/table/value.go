package table

import (
	"encoding/json"
	"strconv"
)

// Kind is the canonical semantic type of a column.
type Kind int

const (
	String Kind = iota
	Int
	Float
)

func (k Kind) String() string {
	switch k {
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return "string"
	}
}

// MarshalText renders the kind name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Value is a single typed cell. The zero Value is a missing string.
type Value struct {
	kind    Kind
	str     string
	num     int64
	flt     float64
	present bool
}

// Str returns a present string value.
func Str(s string) Value { return Value{kind: String, str: s, present: true} }

// IntValue returns a present integer value.
func IntValue(i int64) Value { return Value{kind: Int, num: i, present: true} }

// FloatValue returns a present float value.
func FloatValue(f float64) Value { return Value{kind: Float, flt: f, present: true} }

// Missing returns the missing-value marker for kind k.
func Missing(k Kind) Value { return Value{kind: k} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsMissing() bool { return !v.present }
func (v Value) StringVal() string { return v.str }
func (v Value) IntVal() int64 { return v.num }
func (v Value) FloatVal() float64 { return v.flt }

// Number reports the numeric value for Int and Float cells.
func (v Value) Number() (float64, bool) {
	if !v.present {
		return 0, false
	}
	switch v.kind {
	case Int:
		return float64(v.num), true
	case Float:
		return v.flt, true
	}
	return 0, false
}

// Text renders the value for display and equality against user input.
// Missing values render as "".
func (v Value) Text() string {
	if !v.present {
		return ""
	}
	switch v.kind {
	case Int:
		return strconv.FormatInt(v.num, 10)
	case Float:
		return strconv.FormatFloat(v.flt, 'f', -1, 64)
	}
	return v.str
}

// Equal compares two values. Numbers compare numerically regardless of kind;
// missing never equals anything, including another missing value.
func (v Value) Equal(o Value) bool {
	if !v.present || !o.present {
		return false
	}
	a, okA := v.Number()
	b, okB := o.Number()
	if okA && okB {
		return a == b
	}
	if okA != okB {
		return false
	}
	return v.str == o.str
}

// Less orders values: numbers numerically, strings lexically, missing last.
func (v Value) Less(o Value) bool {
	if !v.present {
		return false
	}
	if !o.present {
		return true
	}
	a, okA := v.Number()
	b, okB := o.Number()
	if okA && okB {
		return a < b
	}
	return v.Text() < o.Text()
}

// MarshalJSON writes numbers as numbers, strings as strings and missing as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	switch v.kind {
	case Int:
		return []byte(strconv.FormatInt(v.num, 10)), nil
	case Float:
		return json.Marshal(v.flt)
	}
	return json.Marshal(v.str)
}

// MarshalYAML mirrors MarshalJSON for yaml.v3.
func (v Value) MarshalYAML() (interface{}, error) {
	if !v.present {
		return nil, nil
	}
	switch v.kind {
	case Int:
		return v.num, nil
	case Float:
		return v.flt, nil
	}
	return v.str, nil
}
