// internal/codec/order.go
package codec

import (
	"fmt"
	"strings"
)

// Endianness is the byte order inside one 16-bit register.
type Endianness uint8

const (
	BigEndian Endianness = iota
	LittleEndian
)

func (e Endianness) String() string {
	switch e {
	case BigEndian:
		return "big"
	case LittleEndian:
		return "little"
	default:
		return fmt.Sprintf("endianness(%d)", uint8(e))
	}
}

// Valid reports whether e is a known value.
func (e Endianness) Valid() bool { return e == BigEndian || e == LittleEndian }

// ParseEndianness accepts "big"/"little" (case-insensitive, "-endian" suffix allowed).
func ParseEndianness(s string) (Endianness, error) {
	switch strings.TrimSuffix(strings.ToLower(strings.TrimSpace(s)), "-endian") {
	case "", "big", "be":
		return BigEndian, nil
	case "little", "le":
		return LittleEndian, nil
	}
	return 0, fmt.Errorf("codec: unknown endianness %q", s)
}

// WordOrder is the register layout of a multi-register value. Letters name
// the bytes of the canonical big-endian value, A being the most significant.
type WordOrder uint8

const (
	ABCD WordOrder = iota // [AB CD]
	BADC                  // [BA DC] bytes swapped in each word
	CDAB                  // [CD AB] words reversed
	DCBA                  // [DC BA] words reversed and bytes swapped
)

func (w WordOrder) String() string {
	switch w {
	case ABCD:
		return "ABCD"
	case BADC:
		return "BADC"
	case CDAB:
		return "CDAB"
	case DCBA:
		return "DCBA"
	default:
		return fmt.Sprintf("wordorder(%d)", uint8(w))
	}
}

// Valid reports whether w is a known value.
func (w WordOrder) Valid() bool { return w <= DCBA }

func (w WordOrder) swapsBytes() bool { return w == BADC || w == DCBA }
func (w WordOrder) swapsWords() bool { return w == CDAB || w == DCBA }

// ParseWordOrder accepts the four letter codes, case-insensitive.
func ParseWordOrder(s string) (WordOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ABCD":
		return ABCD, nil
	case "BADC":
		return BADC, nil
	case "CDAB":
		return CDAB, nil
	case "DCBA":
		return DCBA, nil
	}
	return 0, fmt.Errorf("codec: unknown word order %q", s)
}
