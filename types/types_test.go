package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/nsf/jsondiff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

func TestBV64(t *testing.T) {
	b := NewBV64(0x1ff, 8)
	assert.Equal(t, uint64(0xff), b.Lower())

	ext, err := NewBV64(0x80, 8).SignExtend(16)
	require.NoError(t, err)
	assert.Equal(t, BV64{Bits: 0xff80, Len: 16}, ext)

	ext, err = NewBV64(0x7f, 8).SignExtend(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0x7f), ext.Lower())

	ext, err = NewBV64(0x8000_0000, 32).SignExtend(64)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xffff_ffff_8000_0000), ext.Lower())

	_, err = NewBV64(1, 32).SignExtend(16)
	assert.Error(t, err)
	_, err = NewBV64(1, 32).SignExtend(65)
	assert.Error(t, err)

	assert.Equal(t, uint64(0x0f), NewBV64(0xff, 64).And(NewBV64(0x0f, 8)).Lower())
	assert.Equal(t, uint64(0xff), NewBV64(0xf0, 64).Or(NewBV64(0x0f, 8)).Lower())
	assert.Equal(t, uint64(0xf0), NewBV64(0xff, 64).Xor(NewBV64(0x0f, 8)).Lower())
	assert.Equal(t, uint64(0xf0), NewBV64(0x0f, 8).Shl(4).Lower())
	assert.Equal(t, uint64(0xe0), NewBV64(0x0f, 8).Shl(5).Lower())
	assert.Equal(t, uint64(0), NewBV64(0x0f, 64).Shl(64).Lower())
	assert.Equal(t, uint64(0x1), NewBV64(0x10, 64).Lshr(4).Lower())
	assert.Equal(t, ^uint64(0)-0xff, NewBV64(0x100, 64).Sub(NewBV64(0x200, 64)).Lower())
}

func TestParseReg(t *testing.T) {
	cases := map[string]Reg{
		"x0":        X(0),
		"X30":       X(30),
		"R5":        X(5),
		"w3":        W(3),
		"q7":        {Kind: KindQ, Index: 7},
		"PSTATE.EL": PStateEL,
		"VBAR_EL1":  VBarEL1,
		"__isla_v":  Isla("__isla_v"),
	}
	for in, want := range cases {
		got, err := ParseReg(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, s := range []string{"ELR_EL1", "SPSR_EL1", "TTBR0_EL1"} {
		_, err := ParseReg(s)
		assert.True(t, litmuserrors.IsUnsupported(err), s)
	}
	for _, s := range []string{"z1", "x", "xfoo", ""} {
		_, err := ParseReg(s)
		assert.True(t, errors.Is(err, litmuserrors.ErrParseReg), s)
	}
}

func TestRegRepresentations(t *testing.T) {
	asm, err := X(3).AsAsm()
	require.NoError(t, err)
	assert.Equal(t, "x3", asm)

	out, err := X(1).OutputName(0)
	require.NoError(t, err)
	assert.Equal(t, "outp0r1", out)

	_, err = W(1).OutputName(0)
	assert.True(t, errors.Is(err, litmuserrors.ErrUnrepresentable))
	_, err = PStateEL.AsAsm()
	assert.True(t, errors.Is(err, litmuserrors.ErrUnrepresentable))
	_, err = Isla("__isla_x").Idx()
	assert.Equal(t, litmuserrors.CategoryInternal, litmuserrors.Classify(err))

	set := NewRegSet(VBarEL1, X(2), W(1), X(10), PStateEL)
	assert.Equal(t, []Reg{X(2), X(10), W(1), PStateEL, VBarEL1}, set.Sorted())

	th := &Thread{Reset: map[Reg]MovSrc{
		X(10):    Nat{BV: NewBV64(1, 64)},
		VBarEL1:  RegSrc{Name: "vbar"},
		X(2):     Nat{BV: NewBV64(2, 64)},
		W(1):     Nat{BV: NewBV64(3, 64)},
		PStateEL: Nat{BV: NewBV64(0, 64)},
	}}
	assert.Equal(t, []Reg{X(2), X(10), W(1), PStateEL, VBarEL1}, th.SortedReset())
	assert.Empty(t, (&Thread{}).SortedReset())
}

func TestMovSrc(t *testing.T) {
	cases := []struct {
		src  MovSrc
		asm  string
		code string
	}{
		{Nat{BV: NewBV64(5, 64)}, "#5", "5"},
		{Bin{BV: NewBV64(5, 64)}, "#0b101", "0b101"},
		{Hex{BV: NewBV64(255, 64)}, "#0xff", "0xff"},
		{RegSrc{Name: "x"}, "%[x]", "outx"},
		{Page{Sym: "x"}, "%[xpage]", `var_page("x")`},
		{Pte{Sym: "x", Level: 3}, "%[xpte]", `var_pte(data, "x")`},
		{Pte{Sym: "x", Level: 2}, "%[xpmd]", `var_pmd(data, "x")`},
		{Pte{Sym: "x", Level: 1}, "%[xpud]", `var_pud(data, "x")`},
		{Desc{Sym: "x", Level: 3}, "%[xdesc]", `var_ptedesc(data, "x")`},
		{Desc{Sym: "x", Level: 2}, "%[xpmddesc]", `var_pmddesc(data, "x")`},
		{Desc{Sym: "x", Level: 1}, "%[xpuddesc]", `var_puddesc(data, "x")`},
	}
	for _, tc := range cases {
		t.Run(tc.src.String(), func(t *testing.T) {
			asm, err := AsAsm(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.asm, asm)
			code, err := AsCCode(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.code, code)
		})
	}

	_, err := AsAsm(Pte{Sym: "x", Level: 4})
	assert.True(t, errors.Is(err, litmuserrors.ErrUnrepresentable))
	_, err = AsCCode(Desc{Sym: "x", Level: 0})
	assert.True(t, errors.Is(err, litmuserrors.ErrUnrepresentable))
}

func TestMovSrcMapOnlyImmediates(t *testing.T) {
	double := func(b BV64) (BV64, error) { return NewBV64(b.Bits*2, b.Len), nil }

	got, err := Map(Hex{BV: NewBV64(4, 64)}, double)
	require.NoError(t, err)
	assert.Equal(t, Hex{BV: NewBV64(8, 64)}, got)

	for _, src := range []MovSrc{RegSrc{Name: "x"}, Page{Sym: "x"}, Pte{Sym: "x", Level: 3}, Desc{Sym: "x", Level: 1}} {
		_, err := Map(src, double)
		assert.True(t, errors.Is(err, litmuserrors.ErrNotImmediate), src.String())
		_, err = Bits(src)
		assert.True(t, errors.Is(err, litmuserrors.ErrNotImmediate), src.String())
	}
}

func TestParseRegsFromAsm(t *testing.T) {
	asm := `
	MOV X0,#1
	STR x0,[X1] ; x9 is only a comment
	LDR w2, [x3]
	ADD x31, x30, q4
	fmov d5, s6`
	set, err := ParseRegsFromAsm(asm)
	require.NoError(t, err)
	assert.Equal(t, []Reg{
		X(0), X(1), X(3), X(30),
		W(2),
		{Kind: KindS, Index: 6},
		{Kind: KindD, Index: 5},
		{Kind: KindQ, Index: 4},
	}, set.Sorted())
}

func sampleLitmus() *Litmus {
	vbar := NewBV64(0x1000, 64)
	return &Litmus{
		Arch:               "AArch64",
		Name:               "MP+dmbs",
		Threads:            []Thread{{Name: "0", Code: "STR X0,[X1]", EL: 1, Clobbers: NewRegSet(X(0), X(1)), VBarEL1: &vbar, Reset: map[Reg]MovSrc{X(1): RegSrc{Name: "x"}, X(0): Nat{BV: NewBV64(1, 64)}}}},
		SyncHandlers:       []ThreadSyncHandler{{Name: "h", Code: "ERET", Clobbers: NewRegSet(), ThreadELs: []ThreadEL{{Thread: 0, EL: 1}}}},
		VarNames:           []string{"x"},
		AdditionalVarNames: []string{"pa1"},
		Regs:               []ThreadReg{{Thread: 0, Reg: X(0)}},
		FinalAssertionText: "0:X0=1",
		InitState:          []InitState{Var{Sym: "x", Value: "0"}, Alias{Sym: "y", Target: "x"}},
	}
}

func TestLitmusJSON(t *testing.T) {
	got, err := json.Marshal(sampleLitmus())
	require.NoError(t, err)

	want := `{
	  "arch": "AArch64",
	  "name": "MP+dmbs",
	  "mmu_on": false,
	  "vars": ["x"],
	  "additional_vars": ["pa1"],
	  "regs": ["0:x0"],
	  "final_assertion": "0:X0=1",
	  "threads": [{
	    "name": "0", "el": 1, "code": "STR X0,[X1]",
	    "clobbers": ["x0", "x1"], "vbar_el1": "0x1000",
	    "reset": {"x0": "1", "x1": "x"}
	  }],
	  "sync_handlers": [{"name": "h", "code": "ERET", "clobbers": [], "thread_els": ["0:EL1"]}],
	  "init_state": ["INIT_VAR(x, 0)", "INIT_ALIAS(y, x)"]
	}`
	opts := jsondiff.DefaultConsoleOptions()
	diff, desc := jsondiff.Compare(got, []byte(want), &opts)
	assert.Equal(t, jsondiff.FullMatch, diff, desc)

	indented, err := sampleLitmus().ToJSON()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(indented), "{\n  \"arch\""))
}

func TestLitmusTree(t *testing.T) {
	out := sampleLitmus().ToTree().String()
	for _, want := range []string{"MP+dmbs", "[EL1]  P0", "[x0]  1", "[vbar_el1]  0x1000", "INIT_ALIAS(y, x)", "[h]  0 (EL1)"} {
		assert.Contains(t, out, want)
	}
}

func TestNegatableString(t *testing.T) {
	assert.Equal(t, "Eq(1)", Eq[MovSrc](Nat{BV: NewBV64(1, 64)}).String())
	assert.Equal(t, "Not(0x0)", Not[MovSrc](Hex{BV: NewBV64(0, 64)}).String())
}
