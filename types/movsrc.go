package types

import (
	"fmt"
	"strconv"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

// MovSrc is a value that can be moved into a register.
type MovSrc interface {
	fmt.Stringer
	movSrc()
}

func (Nat) movSrc()    {}
func (Bin) movSrc()    {}
func (Hex) movSrc()    {}
func (RegSrc) movSrc() {}
func (Page) movSrc()   {}
func (Pte) movSrc()    {}
func (Desc) movSrc()   {}

// Nat, Bin and Hex are immediates differing only in how they are printed.
type Nat struct{ BV BV64 }
type Bin struct{ BV BV64 }
type Hex struct{ BV BV64 }

// RegSrc copies the value of a named location, usually a symbolic address.
type RegSrc struct{ Name string }

type Page struct{ Sym string }

// Pte is the translation table entry for Sym at Level.
type Pte struct {
	Sym   string
	Level uint8
}

// Desc is the raw descriptor for Sym at Level.
type Desc struct {
	Sym   string
	Level uint8
}

func (s Nat) String() string    { return strconv.FormatUint(s.BV.Lower(), 10) }
func (s Bin) String() string    { return "0b" + strconv.FormatUint(s.BV.Lower(), 2) }
func (s Hex) String() string    { return "0x" + strconv.FormatUint(s.BV.Lower(), 16) }
func (s RegSrc) String() string { return s.Name }
func (s Page) String() string   { return "page(" + s.Sym + ")" }
func (s Pte) String() string    { return fmt.Sprintf("pte%d(%s)", s.Level, s.Sym) }
func (s Desc) String() string   { return fmt.Sprintf("desc%d(%s)", s.Level, s.Sym) }

// Bits returns the bitvector of an immediate.
func Bits(src MovSrc) (BV64, error) {
	switch s := src.(type) {
	case Nat:
		return s.BV, nil
	case Bin:
		return s.BV, nil
	case Hex:
		return s.BV, nil
	default:
		return BV64{}, litmuserrors.Wrap(litmuserrors.ErrNotImmediate, "%s", src)
	}
}

// Map transforms the bits of an immediate, keeping its form.
func Map(src MovSrc, f func(BV64) (BV64, error)) (MovSrc, error) {
	bv, err := Bits(src)
	if err != nil {
		return nil, err
	}
	out, err := f(bv)
	if err != nil {
		return nil, err
	}
	switch src.(type) {
	case Nat:
		return Nat{BV: out}, nil
	case Bin:
		return Bin{BV: out}, nil
	default:
		return Hex{BV: out}, nil
	}
}

var (
	pteAsm  = map[uint8]string{3: "pte", 2: "pmd", 1: "pud"}
	descAsm = map[uint8]string{3: "desc", 2: "pmddesc", 1: "puddesc"}
	pteC    = map[uint8]string{3: "var_pte", 2: "var_pmd", 1: "var_pud"}
	descC   = map[uint8]string{3: "var_ptedesc", 2: "var_pmddesc", 1: "var_puddesc"}
)

// AsAsm renders src as an assembly operand.
func AsAsm(src MovSrc) (string, error) {
	switch s := src.(type) {
	case Nat:
		return "#" + s.String(), nil
	case Bin:
		return "#" + s.String(), nil
	case Hex:
		return "#" + s.String(), nil
	case RegSrc:
		return "%[" + s.Name + "]", nil
	case Page:
		return "%[" + s.Sym + "page]", nil
	case Pte:
		suffix, ok := pteAsm[s.Level]
		if !ok {
			return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "%s", s)
		}
		return "%[" + s.Sym + suffix + "]", nil
	case Desc:
		suffix, ok := descAsm[s.Level]
		if !ok {
			return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "%s", s)
		}
		return "%[" + s.Sym + suffix + "]", nil
	default:
		return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "%T", src)
	}
}

// AsCCode renders src as a C expression for compiled assertions.
func AsCCode(src MovSrc) (string, error) {
	switch s := src.(type) {
	case Nat, Bin, Hex:
		return s.String(), nil
	case RegSrc:
		return "out" + s.Name, nil
	case Page:
		return fmt.Sprintf("var_page(%q)", s.Sym), nil
	case Pte:
		fn, ok := pteC[s.Level]
		if !ok {
			return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "%s", s)
		}
		return fmt.Sprintf("%s(data, %q)", fn, s.Sym), nil
	case Desc:
		fn, ok := descC[s.Level]
		if !ok {
			return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "%s", s)
		}
		return fmt.Sprintf("%s(data, %q)", fn, s.Sym), nil
	default:
		return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "%T", src)
	}
}
