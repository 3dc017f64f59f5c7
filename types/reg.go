package types

import (
	"cmp"
	"strconv"
	"strings"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

type RegKind uint8

const (
	KindX RegKind = iota // X0..X30, all 64 bits
	KindW                // W0..W30, bottom 32 bits
	KindB
	KindH
	KindS
	KindD
	KindQ
	KindPState // PSTATE fields, only read for the exception level
	KindVBar   // vector base registers
	KindIsla   // harness internal, never emitted
)

var regPrefix = map[RegKind]string{
	KindX: "x",
	KindW: "w",
	KindB: "b",
	KindH: "h",
	KindS: "s",
	KindD: "d",
	KindQ: "q",
}

// Reg identifies a register. Numbered kinds use Index, the special kinds
// use Name.
type Reg struct {
	Kind  RegKind
	Index uint8
	Name  string
}

func X(n uint8) Reg { return Reg{Kind: KindX, Index: n} }
func W(n uint8) Reg { return Reg{Kind: KindW, Index: n} }

func PState(name string) Reg { return Reg{Kind: KindPState, Name: name} }
func VBar(name string) Reg   { return Reg{Kind: KindVBar, Name: name} }
func Isla(name string) Reg   { return Reg{Kind: KindIsla, Name: name} }

var (
	PStateEL = PState("PSTATE.EL")
	VBarEL1  = VBar("VBAR_EL1")
	VBarEL2  = VBar("VBAR_EL2")
)

// Compare orders registers by kind, then index, then name.
func (r Reg) Compare(o Reg) int {
	if c := cmp.Compare(r.Kind, o.Kind); c != 0 {
		return c
	}
	if c := cmp.Compare(r.Index, o.Index); c != 0 {
		return c
	}
	return strings.Compare(r.Name, o.Name)
}

func (r Reg) Special() bool {
	return r.Kind == KindPState || r.Kind == KindVBar
}

func (r Reg) String() string {
	if p, ok := regPrefix[r.Kind]; ok {
		return p + strconv.Itoa(int(r.Index))
	}
	return r.Name
}

// AsAsm returns the assembly name, e.g. x3.
func (r Reg) AsAsm() (string, error) {
	if p, ok := regPrefix[r.Kind]; ok {
		return p + strconv.Itoa(int(r.Index)), nil
	}
	return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "register %s has no assembly name", r.Name)
}

func (r Reg) Idx() (uint8, error) {
	if _, ok := regPrefix[r.Kind]; ok {
		return r.Index, nil
	}
	return 0, litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "register %s has no index", r.Name)
}

// OutputName is the harness operand name of an X register of a thread,
// e.g. outp0r1.
func (r Reg) OutputName(thread int) (string, error) {
	if r.Kind != KindX {
		return "", litmuserrors.Wrap(litmuserrors.ErrUnrepresentable, "no output name for non X register %s", r)
	}
	return "outp" + strconv.Itoa(thread) + "r" + strconv.Itoa(int(r.Index)), nil
}

var regLetters = map[byte]RegKind{
	'x': KindX, 'X': KindX,
	'w': KindW, 'W': KindW,
	'b': KindB, 'B': KindB,
	'h': KindH, 'H': KindH,
	's': KindS, 'S': KindS,
	'd': KindD, 'D': KindD,
	'q': KindQ, 'Q': KindQ,
	// symbol table names, R0..R30
	'r': KindX, 'R': KindX,
}

// ParseReg converts a register name into a Reg, recognising special
// registers by prefix.
func ParseReg(s string) (Reg, error) {
	switch {
	case strings.HasPrefix(s, "PSTATE"):
		return PState(s), nil
	case strings.HasPrefix(s, "VBAR"):
		return VBar(s), nil
	case strings.HasPrefix(s, "__isla"):
		return Isla(s), nil
	case strings.HasPrefix(s, "ELR_EL"), strings.HasPrefix(s, "SPSR_EL"), strings.HasPrefix(s, "TTBR"):
		return Reg{}, litmuserrors.Unsupported("special registers like %s are not supported in thread resets", s)
	}
	if len(s) < 2 {
		return Reg{}, litmuserrors.Wrap(litmuserrors.ErrParseReg, "%q", s)
	}
	kind, ok := regLetters[s[0]]
	if !ok {
		return Reg{}, litmuserrors.Wrap(litmuserrors.ErrParseReg, "%c (%s)", s[0], s)
	}
	idx, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil {
		return Reg{}, litmuserrors.Wrap(litmuserrors.ErrParseReg, "%v (%s)", err, s)
	}
	return Reg{Kind: kind, Index: uint8(idx)}, nil
}
