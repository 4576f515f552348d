// internal/codec/value.go
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind tags the variant held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindUint
	KindFloat
	KindBool
	KindText
	KindStruct
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindText:
		return "text"
	case KindStruct:
		return "struct"
	default:
		return "invalid"
	}
}

// Field is one named member of a struct Value.
type Field struct {
	Name  string
	Value Value
}

// Value is an immutable tagged union of the value kinds a reading can carry.
type Value struct {
	kind   Kind
	i      int64
	u      uint64
	f      float64
	b      bool
	s      string
	fields []Field
}

func Int(v int64) Value     { return Value{kind: KindInt, i: v} }
func Uint(v uint64) Value   { return Value{kind: KindUint, u: v} }
func Float(v float64) Value { return Value{kind: KindFloat, f: v} }
func Bool(v bool) Value     { return Value{kind: KindBool, b: v} }
func Text(v string) Value   { return Value{kind: KindText, s: v} }

// Struct copies fields so the result stays immutable.
func Struct(fields ...Field) Value {
	cp := make([]Field, len(fields))
	copy(cp, fields)
	return Value{kind: KindStruct, fields: cp}
}

func (v Value) Kind() Kind     { return v.kind }
func (v Value) IsValid() bool  { return v.kind != KindInvalid }
func (v Value) Int() int64     { return v.i }
func (v Value) Uint() uint64   { return v.u }
func (v Value) Float() float64 { return v.f }
func (v Value) Bool() bool     { return v.b }
func (v Value) Text() string   { return v.s }

// Fields returns a copy of the struct members.
func (v Value) Fields() []Field {
	cp := make([]Field, len(v.fields))
	copy(cp, v.fields)
	return cp
}

// AsFloat converts numeric and bool values to float64.
func (v Value) AsFloat() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindUint:
		return float64(v.u), true
	case KindFloat:
		return v.f, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText, KindStruct, KindInvalid:
		return 0, false
	}
	return 0, false
}

// Equal compares kind and payload. Floats compare by bit pattern so NaN
// payloads round-trip.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindInt:
		return v.i == o.i
	case KindUint:
		return v.u == o.u
	case KindFloat:
		return math.Float64bits(v.f) == math.Float64bits(o.f)
	case KindBool:
		return v.b == o.b
	case KindText:
		return v.s == o.s
	case KindStruct:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Name != o.fields[i].Name || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	case KindInvalid:
		return true
	}
	return false
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindUint:
		return strconv.FormatUint(v.u, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindText:
		return v.s
	case KindStruct:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(f.Name)
			buf.WriteByte('=')
			buf.WriteString(f.Value.String())
		}
		buf.WriteByte('}')
		return buf.String()
	case KindInvalid:
		return "<invalid>"
	}
	return "<invalid>"
}

// MarshalJSON encodes the payload only; struct fields keep their order.
// Non-finite floats encode as null.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindInt:
		return []byte(strconv.FormatInt(v.i, 10)), nil
	case KindUint:
		return []byte(strconv.FormatUint(v.u, 10)), nil
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return []byte("null"), nil
		}
		return []byte(strconv.FormatFloat(v.f, 'g', -1, 64)), nil
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindText:
		return json.Marshal(v.s)
	case KindStruct:
		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(f.Name)
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			inner, err := f.Value.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", f.Name, err)
			}
			buf.Write(inner)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case KindInvalid:
		return []byte("null"), nil
	}
	return nil, fmt.Errorf("codec: unknown value kind %d", v.kind)
}
