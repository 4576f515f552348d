// internal/codec/codec.go
package codec

import (
	"encoding/binary"
	"math"

	"github.com/tamzrod/modbus-client/internal/fault"
)

// Codec converts between register words and typed values.
// Pure: no IO, no state. The zero value is BigEndian/ABCD.
type Codec struct {
	Endianness Endianness
	WordOrder  WordOrder
}

// ---- layout ----

// toWords lays out the canonical big-endian bytes b as registers.
// WordOrder only applies to values spanning more than one register.
func (c Codec) toWords(b []byte) []uint16 {
	n := len(b) / 2
	multi := n > 1
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		src := i
		if multi && c.WordOrder.swapsWords() {
			src = n - 1 - i
		}
		hi, lo := b[2*src], b[2*src+1]
		if multi && c.WordOrder.swapsBytes() {
			hi, lo = lo, hi
		}
		if c.Endianness == LittleEndian {
			hi, lo = lo, hi
		}
		out[i] = uint16(hi)<<8 | uint16(lo)
	}
	return out
}

// fromWords is the inverse of toWords.
func (c Codec) fromWords(words []uint16) []byte {
	n := len(words)
	multi := n > 1
	b := make([]byte, 2*n)
	for i, w := range words {
		hi, lo := byte(w>>8), byte(w)
		if c.Endianness == LittleEndian {
			hi, lo = lo, hi
		}
		if multi && c.WordOrder.swapsBytes() {
			hi, lo = lo, hi
		}
		dst := i
		if multi && c.WordOrder.swapsWords() {
			dst = n - 1 - i
		}
		b[2*dst], b[2*dst+1] = hi, lo
	}
	return b
}

func (c Codec) canonical(op string, words []uint16, want int) ([]byte, error) {
	if len(words) != want {
		return nil, fault.Newf(fault.KindDecoding, op, "need %d registers, got %d", want, len(words))
	}
	return c.fromWords(words), nil
}

// ---- 16-bit ----

func (c Codec) Uint16(words []uint16) (uint16, error) {
	b, err := c.canonical("decode uint16", words, 1)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c Codec) Int16(words []uint16) (int16, error) {
	v, err := c.Uint16(words)
	return int16(v), err
}

func (c Codec) PutUint16(v uint16) []uint16 {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return c.toWords(b[:])
}

func (c Codec) PutInt16(v int16) []uint16 { return c.PutUint16(uint16(v)) }

// ---- 32-bit ----

func (c Codec) Uint32(words []uint16) (uint32, error) {
	b, err := c.canonical("decode uint32", words, 2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (c Codec) Int32(words []uint16) (int32, error) {
	v, err := c.Uint32(words)
	return int32(v), err
}

func (c Codec) Float32(words []uint16) (float32, error) {
	v, err := c.Uint32(words)
	return math.Float32frombits(v), err
}

func (c Codec) PutUint32(v uint32) []uint16 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return c.toWords(b[:])
}

func (c Codec) PutInt32(v int32) []uint16     { return c.PutUint32(uint32(v)) }
func (c Codec) PutFloat32(v float32) []uint16 { return c.PutUint32(math.Float32bits(v)) }

// ---- 64-bit ----

func (c Codec) Uint64(words []uint16) (uint64, error) {
	b, err := c.canonical("decode uint64", words, 4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (c Codec) Int64(words []uint16) (int64, error) {
	v, err := c.Uint64(words)
	return int64(v), err
}

func (c Codec) Float64(words []uint16) (float64, error) {
	v, err := c.Uint64(words)
	return math.Float64frombits(v), err
}

func (c Codec) PutUint64(v uint64) []uint16 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return c.toWords(b[:])
}

func (c Codec) PutInt64(v int64) []uint16     { return c.PutUint64(uint64(v)) }
func (c Codec) PutFloat64(v float64) []uint16 { return c.PutUint64(math.Float64bits(v)) }

// ---- text ----

// String unpacks two ASCII characters per register (high byte first after
// Endianness is applied). Trailing NULs are trimmed.
func (c Codec) String(words []uint16) string {
	b := make([]byte, 0, 2*len(words))
	for _, w := range words {
		hi, lo := byte(w>>8), byte(w)
		if c.Endianness == LittleEndian {
			hi, lo = lo, hi
		}
		b = append(b, hi, lo)
	}
	end := len(b)
	for end > 0 && b[end-1] == 0 {
		end--
	}
	return string(b[:end])
}

// PutString packs s into exactly n registers, NUL padded. Non-printable
// bytes become '?'. Text longer than 2n bytes fails.
func (c Codec) PutString(s string, n int) ([]uint16, error) {
	if len(s) > 2*n {
		return nil, fault.Newf(fault.KindDecoding, "encode string", "%d bytes do not fit in %d registers", len(s), n)
	}
	b := make([]byte, 2*n)
	copy(b, s)
	for i := 0; i < len(s); i++ {
		if b[i] < 0x20 || b[i] > 0x7E {
			b[i] = '?'
		}
	}
	out := make([]uint16, n)
	for i := range out {
		hi, lo := b[2*i], b[2*i+1]
		if c.Endianness == LittleEndian {
			hi, lo = lo, hi
		}
		out[i] = uint16(hi)<<8 | uint16(lo)
	}
	return out, nil
}
