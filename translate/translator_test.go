package translate

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/litmus/isa"
	"github.com/colorfulnotion/litmus/litmuserrors"
	"github.com/colorfulnotion/litmus/log"
	"github.com/colorfulnotion/litmus/pgtable"
	"github.com/colorfulnotion/litmus/types"
)

const mpTest = `
arch = "AArch64"
name = "MP+pos"
symbolic = ["x", "y"]

[thread.0]
init = { X0 = 1, X1 = "x", X2 = "y" }
code = """
	STR X0,[X1]
	STR X0,[X2]
"""

[thread.1]
init = { X1 = "y", X3 = "x" }
code = """
	LDR X0,[X1]
	LDR X2,[X3]
"""

[final]
assertion = "1:X0 = 1 & ~1:X2 = 0"
`

func newTestTranslator(t *testing.T) *Translator {
	t.Helper()
	return NewTranslator(mustISA(t))
}

func TestParseWithoutPageTables(t *testing.T) {
	l, err := newTestTranslator(t).Parse(mpTest, types.CompiledAssertion)
	require.NoError(t, err)

	assert.Equal(t, "MP+pos", l.Name)
	assert.Equal(t, "AArch64", l.Arch)
	assert.False(t, l.MMUOn)
	assert.Equal(t, []string{"x", "y"}, l.VarNames)
	assert.Empty(t, l.AdditionalVarNames)
	assert.Equal(t, []types.InitState{
		types.Var{Sym: "x", Value: "0"},
		types.Var{Sym: "y", Value: "0"},
	}, l.InitState)

	require.Len(t, l.Threads, 2)
	t0, t1 := l.Threads[0], l.Threads[1]
	assert.Equal(t, map[types.Reg]types.MovSrc{
		types.X(0): types.Nat{BV: types.NewBV64(1, 64)},
		types.X(1): types.RegSrc{Name: "x"},
		types.X(2): types.RegSrc{Name: "y"},
	}, t0.Reset)
	assert.Equal(t, []types.Reg{types.X(0), types.X(1), types.X(2)}, t0.Clobbers.Sorted())
	assert.Empty(t, t0.Assert)
	assert.Equal(t, []types.RegAssert{
		{Reg: types.X(0), Value: types.Eq[types.MovSrc](types.Nat{BV: types.NewBV64(1, 64)})},
		{Reg: types.X(2), Value: types.Not[types.MovSrc](types.Nat{BV: types.NewBV64(0, 64)})},
	}, t1.Assert)
	assert.Equal(t, []types.ThreadReg{{Thread: 1, Reg: types.X(0)}}, l.Regs)
}

func TestParseHistogramRegs(t *testing.T) {
	l, err := newTestTranslator(t).Parse(mpTest, types.Histogram)
	require.NoError(t, err)
	assert.Equal(t, []types.ThreadReg{
		{Thread: 1, Reg: types.X(0)},
		{Thread: 1, Reg: types.X(2)},
	}, l.Regs)
	for _, th := range l.Threads {
		assert.False(t, th.Compiled)
		assert.Empty(t, th.Assert)
	}
}

func TestCompileAssertionOrder(t *testing.T) {
	tr := newTestTranslator(t)
	doc := `
name = "order"
symbolic = ["x"]
[thread.0]
code = "NOP"
[final]
assertion = "0:X2 = 1 & 0:X0 = 2 & ~0:X2 = 3"
`
	l, err := tr.Parse(doc, types.CompiledAssertion)
	require.NoError(t, err)
	assert.Equal(t, []types.RegAssert{
		{Reg: types.X(2), Value: types.Not[types.MovSrc](types.Nat{BV: types.NewBV64(3, 64)})},
		{Reg: types.X(0), Value: types.Eq[types.MovSrc](types.Nat{BV: types.NewBV64(2, 64)})},
	}, l.Threads[0].Assert)
}

func TestCompiledAssertionUnsupported(t *testing.T) {
	tr := newTestTranslator(t)
	for _, assertion := range []string{
		"0:X0 = 1 | 0:X0 = 2",
		"0:X0 = 1 -> 0:X1 = 2",
		"~(0:X0 = 1 & 0:X1 = 2)",
		"*x = 1",
		"true",
	} {
		doc := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[final]\nassertion = \"" + assertion + "\"\n"
		_, err := tr.Parse(doc, types.CompiledAssertion)
		assert.True(t, litmuserrors.IsUnsupported(err), "%s: %v", assertion, err)
	}

	doc := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[final]\nassertion = \"0:X0 = 1 | 0:X1 = 2\"\n"
	l, err := tr.Parse(doc, types.Histogram)
	require.NoError(t, err)
	assert.Equal(t, []types.ThreadReg{{Thread: 0, Reg: types.X(0)}, {Thread: 0, Reg: types.X(1)}}, l.Regs)
}

const pgtableTest = `
arch = "AArch64"
name = "CoWinvT+po"
symbolic = ["x"]
page_table_setup = """
	physical pa1;
	x |-> pa1;
	*pa1 = 1;
"""

[thread.0]
code = "STR X0,[X1]"

[thread.0.reset]
X0 = "mkdesc3(oa=pa1)"
X1 = "pte3(x)"

[final]
assertion = "0:X0 = 0"
`

func TestParseWithPageTables(t *testing.T) {
	l, err := newTestTranslator(t).Parse(pgtableTest, types.CompiledAssertion)
	require.NoError(t, err)
	assert.True(t, l.MMUOn)
	assert.Equal(t, []string{"pa1"}, l.AdditionalVarNames)
	assert.Equal(t, []types.InitState{
		types.Var{Sym: "pa1", Value: "1"},
		types.Alias{Sym: "x", Target: "pa1"},
	}, l.InitState)
	assert.Equal(t, types.Desc{Sym: "pa1", Level: 3}, l.Threads[0].Reset[types.X(0)])
	assert.Equal(t, types.Pte{Sym: "x", Level: 3}, l.Threads[0].Reset[types.X(1)])
}

type stubSolver struct {
	constraints []pgtable.Constraint
}

func (s stubSolver) Solve(string, *isa.Config) ([]pgtable.Constraint, error) {
	return s.constraints, nil
}

func TestParsePageTableErrors(t *testing.T) {
	tr := newTestTranslator(t)
	base := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[final]\nassertion = \"0:X0 = 0\"\n"

	_, err := tr.Parse("page_table_setup = \"option default_tables = false;\"\n"+base, types.CompiledAssertion)
	assert.True(t, litmuserrors.IsUnsupported(err), "%v", err)

	_, err = tr.Parse("page_table_setup = \"physical pa1;\\nx |-> ;\"\n"+base, types.CompiledAssertion)
	require.Error(t, err)
	assert.True(t, errors.Is(err, litmuserrors.ErrPageTableSetup))
	var se *pgtable.SetupError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 2, se.Line)

	_, err = tr.Parse("page_table_setup = \"physical pa1 pa2; x |-> pa1; x |-> pa2; *pa1 = 5; *pa2 = 6;\"\n"+base, types.CompiledAssertion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Multiple backed values for same address")

	_, err = tr.Parse("locations = []\npage_table_setup = \"physical pa1;\"\n"+base, types.CompiledAssertion)
	assert.True(t, errors.Is(err, litmuserrors.ErrGetTomlValue), "%v", err)

	stub := NewTranslator(mustISA(t), WithSolver(stubSolver{constraints: []pgtable.Constraint{
		&pgtable.CustomTable{Stage: 1, Name: "s1"},
	}}))
	_, err = stub.Parse("page_table_setup = \"ignored\"\n"+base, types.CompiledAssertion)
	assert.True(t, litmuserrors.IsUnsupported(err), "%v", err)
}

const handlerTest = `
name = "handlers"
symbolic = ["x"]

[thread.0]
code = "SVC #0"
[thread.0.reset]
VBAR_EL1 = "0x1000"
"PSTATE.EL" = 0

[thread.1]
code = "NOP"
[thread.1.reset]
VBAR_EL1 = "0x2000"

[thread.2]
code = "NOP"
[thread.2.reset]
VBAR_EL1 = "0x3000"

[thread.3]
code = "NOP"

[final]
assertion = "0:X0 = 0"

[section.thread0_el0_handler]
address = "0x1400"
code = "MOV X2,#1\nERET"

[section.h2]
address = "0x2100"
code = "ERET"

[section.h3]
address = 0x3200
code = "ERET"
`

func TestParseSyncHandlers(t *testing.T) {
	l, err := newTestTranslator(t).Parse(handlerTest, types.CompiledAssertion)
	require.NoError(t, err)

	require.Len(t, l.SyncHandlers, 3)
	assert.Equal(t, "h2", l.SyncHandlers[0].Name)
	assert.Empty(t, l.SyncHandlers[0].ThreadELs)
	assert.Equal(t, "h3", l.SyncHandlers[1].Name)
	assert.Equal(t, []types.ThreadEL{{Thread: 2, EL: 1}}, l.SyncHandlers[1].ThreadELs)
	assert.Equal(t, "thread0_el0_handler", l.SyncHandlers[2].Name)
	assert.Equal(t, []types.ThreadEL{{Thread: 0, EL: 0}}, l.SyncHandlers[2].ThreadELs)
	assert.Equal(t, []types.Reg{types.X(2)}, l.SyncHandlers[2].Clobbers.Sorted())

	require.NotNil(t, l.Threads[0].VBarEL1)
	assert.Equal(t, uint64(0x1000), l.Threads[0].VBarEL1.Lower())
	assert.Nil(t, l.Threads[3].VBarEL1)
	assert.Empty(t, l.Threads[0].Reset)
}

func TestParseSyncHandlerErrors(t *testing.T) {
	tr := newTestTranslator(t)
	base := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[final]\nassertion = \"0:X0 = 0\"\n"

	_, err := tr.Parse(base+"[section.h]\naddress = \"0x400\"\n", types.CompiledAssertion)
	assert.True(t, errors.Is(err, litmuserrors.ErrParseSyncHandler), "%v", err)

	_, err = tr.Parse(base+"[section.h]\naddress = \"x\"\ncode = \"ERET\"\n", types.CompiledAssertion)
	assert.True(t, errors.Is(err, litmuserrors.ErrParseSyncHandler), "%v", err)

	_, err = tr.Parse("section = 1\n"+base, types.CompiledAssertion)
	assert.True(t, errors.Is(err, litmuserrors.ErrGetTomlValue), "%v", err)

	l, err := tr.Parse(base+"[other]\naddress = \"0x400\"\n", types.CompiledAssertion)
	require.NoError(t, err)
	assert.Empty(t, l.SyncHandlers)
}

func TestParseThreadErrors(t *testing.T) {
	tr := newTestTranslator(t)
	final := "[final]\nassertion = \"0:X0 = 0\"\n"
	cases := []struct {
		doc  string
		want error
	}{
		{"symbolic = []\n[thread.0]\ncode = \"NOP\"\n" + final, litmuserrors.ErrGetTomlValue},
		{"name = \"t\"\n[thread.0]\ncode = \"NOP\"\n" + final, litmuserrors.ErrGetTomlValue},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n", litmuserrors.ErrGetTomlValue},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\n" + final, litmuserrors.ErrParseThread},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.2]\ncode = \"NOP\"\n" + final, litmuserrors.ErrParseThread},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\n\"PSTATE.EL\" = \"x\"\n" + final, litmuserrors.ErrParseThread},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\nX0 = 1.5\n" + final, litmuserrors.ErrParseResetValue},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\nZ0 = 1\n" + final, litmuserrors.ErrParseReg},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[final]\nassertion = \"1:X0 = 0\"\n", litmuserrors.ErrUnknownThread},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[final]\nassertion = \"0:X0 = \"\n", litmuserrors.ErrParseFinalAssertion},
		{"name = \"t\"\nsymbolic = [\"x\"]\n[types]\nx = \"float\"\n[thread.0]\ncode = \"NOP\"\n" + final, litmuserrors.ErrGetTomlValue},
		{"name = \"t\"\nsymbolic = [\"x\"\n", litmuserrors.ErrParseToml},
	}
	for i, tc := range cases {
		_, err := tr.Parse(tc.doc, types.CompiledAssertion)
		assert.True(t, errors.Is(err, tc.want), "case %d: %v", i, err)
	}

	unsupported := []string{
		"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncall = \"f\"\n" + final,
		"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\nVBAR_EL2 = \"0x1000\"\n" + final,
		"name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\nELR_EL1 = \"0x1000\"\n" + final,
	}
	for i, doc := range unsupported {
		_, err := tr.Parse(doc, types.CompiledAssertion)
		assert.True(t, litmuserrors.IsUnsupported(err), "case %d: %v", i, err)
	}
}

func TestParseWarnsOnHighEL(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Root()
	defer log.SetDefault(prev)
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(&buf, log.LevelWarn, false)))

	doc := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\n\"PSTATE.EL\" = 2\n[final]\nassertion = \"0:X0 = 0\"\n"
	l, err := newTestTranslator(t).Parse(doc, types.CompiledAssertion)
	require.NoError(t, err)
	assert.Equal(t, uint8(2), l.Threads[0].EL)
	assert.Contains(t, buf.String(), "EL > 1 not allowed")
}

func TestParseRejectsOutOfRangeEL(t *testing.T) {
	for _, el := range []string{"4", "256", "0x102"} {
		doc := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\n\"PSTATE.EL\" = " + el + "\n[final]\nassertion = \"0:X0 = 0\"\n"
		_, err := newTestTranslator(t).Parse(doc, types.CompiledAssertion)
		assert.True(t, litmuserrors.IsUnsupported(err), "EL %s: %v", el, err)
	}
}

func TestParseNegativeAndIslaValues(t *testing.T) {
	doc := "name = \"t\"\nsymbolic = [\"x\"]\n[thread.0]\ncode = \"NOP\"\n[thread.0.reset]\nX0 = -1\n__isla_vector_gpr = \"true\"\n[final]\nassertion = \"0:X0 = 0\"\n"
	l, err := newTestTranslator(t).Parse(doc, types.CompiledAssertion)
	require.NoError(t, err)
	assert.Equal(t, types.Bin{BV: types.NewBV64(^uint64(0), 64)}, l.Threads[0].Reset[types.X(0)])
	assert.Equal(t, types.RegSrc{Name: "true"}, l.Threads[0].Reset[types.Isla("__isla_vector_gpr")])
}
