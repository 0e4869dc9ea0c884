// Package traits defines the typed trait properties attached to generated
// assets. Values are restricted to what on-chain metadata renders cleanly:
// strings, numbers and booleans.
package traits

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindNumber
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is one trait value. The zero Value is invalid and fails to marshal.
type Value struct {
	kind Kind
	str  string
	num  float64
	flag bool
}

// String returns a string trait value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a numeric trait value.
func Number(n float64) Value { return Value{kind: KindNumber, num: n} }

// Int returns a numeric trait value from an integer.
func Int(n int64) Value { return Value{kind: KindNumber, num: float64(n)} }

// Bool returns a boolean trait value.
func Bool(b bool) Value { return Value{kind: KindBool, flag: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Str returns the string payload; ok is false for other kinds.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Num returns the numeric payload; ok is false for other kinds.
func (v Value) Num() (float64, bool) { return v.num, v.kind == KindNumber }

// Boolean returns the boolean payload; ok is false for other kinds.
func (v Value) Boolean() (bool, bool) { return v.flag, v.kind == KindBool }

// Equal reports whether v and o hold the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.flag == o.flag
	default:
		return true
	}
}

// Text renders v for file names and logs.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.flag)
	default:
		return ""
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.flag)
	default:
		return nil, fmt.Errorf("marshal trait: invalid value")
	}
}

// UnmarshalJSON implements json.Unmarshaler. Objects, arrays and null are
// rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("trait value is empty")
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case 'n':
		return fmt.Errorf("trait value must not be null")
	case '{', '[':
		return fmt.Errorf("trait value must be a string, number or boolean")
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*v = Number(n)
	}
	return nil
}

// Properties maps trait keys to values.
type Properties map[string]Value

// Clone returns an independent copy of p.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Merge copies every entry of src into p; src wins on key collisions.
func (p Properties) Merge(src Properties) {
	for k, v := range src {
		p[k] = v
	}
}

// Keys returns the trait keys in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether p and o hold the same keys and values.
func (p Properties) Equal(o Properties) bool {
	if len(p) != len(o) {
		return false
	}
	for k, v := range p {
		ov, ok := o[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}
