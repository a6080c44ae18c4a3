package sim

import (
	"math/bits"
	"strings"
)

// MaxWidth is the widest signal a Kernel supports.
const MaxWidth = 64

const hexDigits = "0123456789abcdef"

// Value is the state of a signal. Bits holds the known bit values, X has a bit
// set for every unknown bit. Unknown positions are always zero in Bits.
type Value struct {
	Bits uint64
	X    uint64
}

// Mask returns a mask of the low width bits.
func Mask(width int) uint64 {
	switch {
	case width <= 0:
		return 0
	case width >= MaxWidth:
		return ^uint64(0)
	}
	return 1<<uint(width) - 1
}

// Known returns a fully known value.
func Known(v uint64) Value { return Value{Bits: v} }

// Unknown returns a value whose low width bits are all unknown.
func Unknown(width int) Value { return Value{X: Mask(width)} }

// Bool returns 1 for true and 0 for false.
func Bool(b bool) Value {
	if b {
		return Value{Bits: 1}
	}
	return Value{}
}

// IsKnown reports whether no bit is unknown.
func (v Value) IsKnown() bool { return v.X == 0 }

// Uint64 returns the known bits and whether the whole value is known.
func (v Value) Uint64() (uint64, bool) { return v.Bits, v.X == 0 }

// High reports whether bit 0 is known and set.
func (v Value) High() bool { return v.X&1 == 0 && v.Bits&1 == 1 }

// Low reports whether bit 0 is known and clear.
func (v Value) Low() bool { return v.X&1 == 0 && v.Bits&1 == 0 }

// Trunc keeps the low width bits of v.
func (v Value) Trunc(width int) Value {
	m := Mask(width)
	return Value{Bits: v.Bits & m &^ v.X, X: v.X & m}
}

// Format renders v as hex digits covering width bits. A digit with any
// unknown bit is printed as 'x'.
func (v Value) Format(width int) string {
	digits := (width + 3) / 4
	if digits < 1 {
		digits = 1
	}
	var b strings.Builder
	b.Grow(digits + 2)
	b.WriteString("0x")
	for i := digits - 1; i >= 0; i-- {
		shift := uint(4 * i)
		if (v.X>>shift)&0xf != 0 {
			b.WriteByte('x')
			continue
		}
		b.WriteByte(hexDigits[(v.Bits>>shift)&0xf])
	}
	return b.String()
}

func (v Value) String() string {
	width := bits.Len64(v.Bits | v.X)
	if width < 4 {
		width = 4
	}
	return v.Format(width)
}
