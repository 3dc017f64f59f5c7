package exp

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

// upperRegs accepts X0..X30 and renames them to R0..R30.
type upperRegs struct{}

func (upperRegs) ResolveRegister(name string) (string, error) {
	up := strings.ToUpper(name)
	var n int
	if _, err := fmt.Sscanf(up, "X%d", &n); err == nil && n <= 30 {
		return fmt.Sprintf("R%d", n), nil
	}
	return "", fmt.Errorf("unknown register %s", name)
}

func TestTokenize(t *testing.T) {
	toks, err := Tokenize("1:X0=0x1f & ~*y = 0b1_0 -> (PSTATE.EL|false)")
	require.NoError(t, err)
	var types []TokenType
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		NAT, COLON, IDENT, EQ, HEX, AMP, TILDE, STAR, IDENT, EQ, BIN, ARROW,
		LPAREN, IDENT, PIPE, FALSE, RPAREN, EOF,
	}, types)
	assert.Equal(t, "1f", toks[4].Lexeme)
	assert.Equal(t, "10", toks[10].Lexeme)
	assert.Equal(t, "PSTATE.EL", toks[13].Lexeme)

	for _, bad := range []string{"0x", "12ab", "1 $ 2", "a - b"} {
		_, err := Tokenize(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseAssertionConjunction(t *testing.T) {
	e, err := ParseAssertion("1:X0=1 & ~1:X2=0", &Env{Registers: upperRegs{}})
	require.NoError(t, err)
	and, ok := e.(*And)
	require.True(t, ok)
	require.Len(t, and.Exps, 2)

	first := and.Exps[0].(*EqLoc)
	assert.Equal(t, &Register{Thread: 1, Reg: "R0"}, first.Loc)
	assert.Equal(t, &Nat{Value: 1}, first.Value)

	not := and.Exps[1].(*Not)
	second := not.Exp.(*EqLoc)
	assert.Equal(t, &Register{Thread: 1, Reg: "R2"}, second.Loc)
	assert.Equal(t, "(1:R0 = 1) & ~(1:R2 = 0)", e.String())
}

func TestParseAssertionPrecedence(t *testing.T) {
	env := &Env{Registers: upperRegs{}}
	e, err := ParseAssertion("0:X0=1 & 0:X1=0 | 1:X0=1 -> 1:X1=1 -> true", env)
	require.NoError(t, err)
	imp, ok := e.(*Implies)
	require.True(t, ok)
	or, ok := imp.Left.(*Or)
	require.True(t, ok)
	require.Len(t, or.Exps, 2)
	_, ok = or.Exps[0].(*And)
	assert.True(t, ok)
	right, ok := imp.Right.(*Implies)
	require.True(t, ok)
	assert.IsType(t, &True{}, right.Right)

	e, err = ParseAssertion("~~(0:X0=1)", env)
	require.NoError(t, err)
	assert.IsType(t, &Not{}, e.(*Not).Exp)
}

func TestParseAssertionMemory(t *testing.T) {
	env := &Env{Sizeof: map[string]uint32{"x": 8}, DefaultSizeof: 4}
	e, err := ParseAssertion("*x = 2 & *y = 0x3", env)
	require.NoError(t, err)
	and := e.(*And)
	assert.Equal(t, &LastWriteTo{Address: "x", Bytes: 8}, and.Exps[0].(*EqLoc).Loc)
	assert.Equal(t, &LastWriteTo{Address: "y", Bytes: 4}, and.Exps[1].(*EqLoc).Loc)
	assert.Equal(t, &Hex{Digits: "3"}, and.Exps[1].(*EqLoc).Value)
}

func TestParseAssertionErrors(t *testing.T) {
	env := &Env{Registers: upperRegs{}}
	cases := []string{
		"",
		"1:X0=",
		"1:X99=1",
		"300:X0=1",
		"(0:X0=1",
		"0:X0=1 &",
		"0:X0=1 0:X1=1",
		"*=1",
	}
	for _, src := range cases {
		_, err := ParseAssertion(src, env)
		require.Error(t, err, src)
		assert.True(t, errors.Is(err, litmuserrors.ErrParseExp), src)
	}
}

func TestParseValue(t *testing.T) {
	cases := []struct {
		src  string
		want Exp
	}{
		{"42", &Nat{Value: 42}},
		{"0x1000", &Hex{Digits: "1000"}},
		{"0b101", &Bin{Digits: "101"}},
		{"x", &Loc{Name: "x"}},
		{"pte3(x)", &App{Func: "pte3", Args: []Exp{&Loc{Name: "x"}}, KwArgs: map[string]Exp{}}},
		{"mkdesc3(oa=pa1)", &App{Func: "mkdesc3", KwArgs: map[string]Exp{"oa": &Loc{Name: "pa1"}}}},
		{"bvand(exts(pte3(x), 64), 0xff)", &App{Func: "bvand", Args: []Exp{
			&App{Func: "exts", Args: []Exp{
				&App{Func: "pte3", Args: []Exp{&Loc{Name: "x"}}, KwArgs: map[string]Exp{}},
				&Nat{Value: 64},
			}, KwArgs: map[string]Exp{}},
			&Hex{Digits: "ff"},
		}, KwArgs: map[string]Exp{}}},
	}
	for _, tc := range cases {
		t.Run(tc.src, func(t *testing.T) {
			got, err := ParseValue(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.src, got.String())
		})
	}

	for _, bad := range []string{"", "f(", "f(a,)", "f(k=1, k=2)", "1 2", "18446744073709551616"} {
		_, err := ParseValue(bad)
		assert.Error(t, err, bad)
	}
}
