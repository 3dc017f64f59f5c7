package types

import (
	"fmt"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

// BV64 is a bitvector of at most 64 bits. Bits above Len are always zero.
type BV64 struct {
	Bits uint64
	Len  uint32
}

func NewBV64(bits uint64, length uint32) BV64 {
	if length > 64 {
		length = 64
	}
	return BV64{Bits: bits & mask(length), Len: length}
}

func mask(length uint32) uint64 {
	if length >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << length) - 1
}

func (b BV64) Lower() uint64 {
	return b.Bits
}

func (b BV64) String() string {
	return fmt.Sprintf("0x%x:%d", b.Bits, b.Len)
}

// SignExtend widens b to n bits, copying the top bit of b into the new
// high bits.
func (b BV64) SignExtend(n uint32) (BV64, error) {
	if n > 64 || n < b.Len {
		return BV64{}, litmuserrors.Wrap(litmuserrors.ErrParseExp, "cannot sign extend %d bit value to %d bits", b.Len, n)
	}
	if b.Len == 0 {
		return BV64{Len: n}, nil
	}
	bits := b.Bits
	if bits>>(b.Len-1)&1 == 1 {
		bits |= mask(n) &^ mask(b.Len)
	}
	return BV64{Bits: bits, Len: n}, nil
}

func wider(a, b BV64) uint32 {
	if a.Len > b.Len {
		return a.Len
	}
	return b.Len
}

func (b BV64) And(o BV64) BV64 {
	return NewBV64(b.Bits&o.Bits, wider(b, o))
}

func (b BV64) Or(o BV64) BV64 {
	return NewBV64(b.Bits|o.Bits, wider(b, o))
}

func (b BV64) Xor(o BV64) BV64 {
	return NewBV64(b.Bits^o.Bits, wider(b, o))
}

func (b BV64) Shl(n uint64) BV64 {
	if n >= 64 {
		return BV64{Len: b.Len}
	}
	return NewBV64(b.Bits<<n, b.Len)
}

func (b BV64) Lshr(n uint64) BV64 {
	if n >= 64 {
		return BV64{Len: b.Len}
	}
	return NewBV64(b.Bits>>n, b.Len)
}

// Sub wraps modulo 2^len.
func (b BV64) Sub(o BV64) BV64 {
	return NewBV64(b.Bits-o.Bits, wider(b, o))
}
