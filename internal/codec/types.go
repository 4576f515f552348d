// internal/codec/types.go
package codec

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tamzrod/modbus-client/internal/fault"
)

// DataType names how a run of registers is interpreted.
type DataType uint8

const (
	TypeUint16 DataType = iota
	TypeInt16
	TypeUint32
	TypeInt32
	TypeUint64
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeString
)

var typeNames = map[DataType]string{
	TypeUint16:  "uint16",
	TypeInt16:   "int16",
	TypeUint32:  "uint32",
	TypeInt32:   "int32",
	TypeUint64:  "uint64",
	TypeInt64:   "int64",
	TypeFloat32: "float32",
	TypeFloat64: "float64",
	TypeBool:    "bool",
	TypeString:  "string",
}

func (t DataType) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("datatype(%d)", uint8(t))
}

// Words is the fixed register width of t; 0 for TypeString (caller sized).
func (t DataType) Words() int {
	switch t {
	case TypeUint16, TypeInt16, TypeBool:
		return 1
	case TypeUint32, TypeInt32, TypeFloat32:
		return 2
	case TypeUint64, TypeInt64, TypeFloat64:
		return 4
	}
	return 0
}

// ParseDataType accepts the names printed by String plus a few aliases.
func ParseDataType(s string) (DataType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "uint16", "u16", "word":
		return TypeUint16, nil
	case "int16", "i16", "short":
		return TypeInt16, nil
	case "uint32", "u32", "dword":
		return TypeUint32, nil
	case "int32", "i32":
		return TypeInt32, nil
	case "uint64", "u64":
		return TypeUint64, nil
	case "int64", "i64":
		return TypeInt64, nil
	case "float32", "float", "real":
		return TypeFloat32, nil
	case "float64", "double", "lreal":
		return TypeFloat64, nil
	case "bool", "boolean":
		return TypeBool, nil
	case "string", "text", "ascii":
		return TypeString, nil
	}
	return 0, fmt.Errorf("codec: unknown data type %q", s)
}

// Decode turns exactly t.Words() registers (any count for strings) into a Value.
func (c Codec) Decode(t DataType, words []uint16) (Value, error) {
	switch t {
	case TypeUint16:
		v, err := c.Uint16(words)
		return Uint(uint64(v)), err
	case TypeInt16:
		v, err := c.Int16(words)
		return Int(int64(v)), err
	case TypeUint32:
		v, err := c.Uint32(words)
		return Uint(uint64(v)), err
	case TypeInt32:
		v, err := c.Int32(words)
		return Int(int64(v)), err
	case TypeUint64:
		v, err := c.Uint64(words)
		return Uint(v), err
	case TypeInt64:
		v, err := c.Int64(words)
		return Int(v), err
	case TypeFloat32:
		v, err := c.Float32(words)
		return Float(float64(v)), err
	case TypeFloat64:
		v, err := c.Float64(words)
		return Float(v), err
	case TypeBool:
		v, err := c.Uint16(words)
		return Bool(v != 0), err
	case TypeString:
		if len(words) == 0 {
			return Value{}, fault.Newf(fault.KindDecoding, "decode string", "no registers")
		}
		return Text(c.String(words)), nil
	}
	return Value{}, fault.Newf(fault.KindDecoding, "decode", "unsupported data type %s", t)
}

// DecodeAll splits words into consecutive values of type t. The word count
// must be a multiple of t's width.
func (c Codec) DecodeAll(t DataType, words []uint16) ([]Value, error) {
	w := t.Words()
	if w == 0 {
		return nil, fault.Newf(fault.KindDecoding, "decode all", "%s has no fixed width", t)
	}
	if len(words)%w != 0 {
		return nil, fault.Newf(fault.KindDecoding, "decode all", "%d registers is not a multiple of %d for %s", len(words), w, t)
	}
	out := make([]Value, 0, len(words)/w)
	for i := 0; i < len(words); i += w {
		v, err := c.Decode(t, words[i:i+w])
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Encode turns v into registers for type t. Integer targets accept Int, Uint,
// Bool and integral Float values within range. Strings use width registers
// (0 means just enough for the text).
func (c Codec) Encode(t DataType, v Value, width int) ([]uint16, error) {
	const op = "encode"
	switch t {
	case TypeFloat32:
		f, ok := v.AsFloat()
		if !ok {
			return nil, kindMismatch(op, t, v)
		}
		if !math.IsInf(f, 0) && !math.IsNaN(f) && math.Abs(f) > math.MaxFloat32 {
			return nil, fault.Newf(fault.KindDecoding, op, "%g overflows float32", f)
		}
		return c.PutFloat32(float32(f)), nil
	case TypeFloat64:
		f, ok := v.AsFloat()
		if !ok {
			return nil, kindMismatch(op, t, v)
		}
		return c.PutFloat64(f), nil
	case TypeBool:
		f, ok := v.AsFloat()
		if !ok {
			return nil, kindMismatch(op, t, v)
		}
		if f != 0 {
			return c.PutUint16(1), nil
		}
		return c.PutUint16(0), nil
	case TypeString:
		if v.Kind() != KindText {
			return nil, kindMismatch(op, t, v)
		}
		if width <= 0 {
			width = (len(v.Text()) + 1) / 2
		}
		return c.PutString(v.Text(), width)
	}

	switch t {
	case TypeUint16, TypeUint32, TypeUint64:
		u, err := toUint(op, t, v)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeUint16:
			if u > math.MaxUint16 {
				return nil, outOfRange(op, t, v)
			}
			return c.PutUint16(uint16(u)), nil
		case TypeUint32:
			if u > math.MaxUint32 {
				return nil, outOfRange(op, t, v)
			}
			return c.PutUint32(uint32(u)), nil
		default:
			return c.PutUint64(u), nil
		}
	case TypeInt16, TypeInt32, TypeInt64:
		i, err := toInt(op, t, v)
		if err != nil {
			return nil, err
		}
		switch t {
		case TypeInt16:
			if i < math.MinInt16 || i > math.MaxInt16 {
				return nil, outOfRange(op, t, v)
			}
			return c.PutInt16(int16(i)), nil
		case TypeInt32:
			if i < math.MinInt32 || i > math.MaxInt32 {
				return nil, outOfRange(op, t, v)
			}
			return c.PutInt32(int32(i)), nil
		default:
			return c.PutInt64(i), nil
		}
	}
	return nil, fault.Newf(fault.KindDecoding, op, "unsupported data type %s", t)
}

func toUint(op string, t DataType, v Value) (uint64, error) {
	switch v.Kind() {
	case KindUint:
		return v.Uint(), nil
	case KindInt:
		if v.Int() < 0 {
			return 0, outOfRange(op, t, v)
		}
		return uint64(v.Int()), nil
	case KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case KindFloat:
		f := v.Float()
		if f != math.Trunc(f) || f < 0 || f >= 1<<64 {
			return 0, outOfRange(op, t, v)
		}
		return uint64(f), nil
	case KindText, KindStruct, KindInvalid:
	}
	return 0, kindMismatch(op, t, v)
}

func toInt(op string, t DataType, v Value) (int64, error) {
	switch v.Kind() {
	case KindInt:
		return v.Int(), nil
	case KindUint:
		if v.Uint() > math.MaxInt64 {
			return 0, outOfRange(op, t, v)
		}
		return int64(v.Uint()), nil
	case KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	case KindFloat:
		f := v.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, outOfRange(op, t, v)
		}
		return int64(f), nil
	case KindText, KindStruct, KindInvalid:
	}
	return 0, kindMismatch(op, t, v)
}

func kindMismatch(op string, t DataType, v Value) error {
	return fault.Newf(fault.KindDecoding, op, "cannot encode %s value as %s", v.Kind(), t)
}

func outOfRange(op string, t DataType, v Value) error {
	return fault.Newf(fault.KindDecoding, op, "value %s out of range for %s", v, t)
}

// ParseValue parses command-line text into a Value suitable for t.
func ParseValue(t DataType, s string) (Value, error) {
	s = strings.TrimSpace(s)
	switch t {
	case TypeUint16, TypeUint32, TypeUint64:
		u, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("codec: parse %s: %w", t, err)
		}
		return Uint(u), nil
	case TypeInt16, TypeInt32, TypeInt64:
		i, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return Value{}, fmt.Errorf("codec: parse %s: %w", t, err)
		}
		return Int(i), nil
	case TypeFloat32, TypeFloat64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, fmt.Errorf("codec: parse %s: %w", t, err)
		}
		return Float(f), nil
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Value{}, fmt.Errorf("codec: parse %s: %w", t, err)
		}
		return Bool(b), nil
	case TypeString:
		return Text(s), nil
	}
	return Value{}, fmt.Errorf("codec: unsupported data type %s", t)
}
