package isa

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colorfulnotion/litmus/litmuserrors"
)

func TestDefaultContext(t *testing.T) {
	ctx, err := Default()
	require.NoError(t, err)
	assert.Equal(t, "AArch64", ctx.Name())
	assert.Equal(t, uint32(4), ctx.DefaultSizeof())
	assert.Contains(t, ctx.DefaultPageTableSetup(), "default_tables")

	again, err := Default()
	require.NoError(t, err)
	assert.Same(t, ctx, again)
}

func TestResolveRegister(t *testing.T) {
	ctx, err := Default()
	require.NoError(t, err)

	cases := map[string]string{
		"X0":        "R0",
		"x30":       "R30",
		"W3":        "R3",
		"R7":        "R7",
		"PSTATE.EL": "PSTATE.EL",
		"VBAR_EL1":  "VBAR_EL1",
		"__isla_x":  "__isla_x",
	}
	for in, want := range cases {
		got, err := ctx.ResolveRegister(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err = ctx.ResolveRegister("X31")
	assert.True(t, errors.Is(err, litmuserrors.ErrParseReg))
	_, err = ctx.ResolveRegister("FOO")
	assert.Error(t, err)
}

func TestParseRejectsBadConfig(t *testing.T) {
	cases := []string{
		`arch = "A"
default_sizeof = 3`,
		`arch = "A"
default_sizeof = 4
surprise = 1`,
		`arch = "A"
default_sizeof = 4
[registers]
families = { R = 0 }`,
		`arch = "A"
default_sizeof = 4
[registers.renames]
X = "Q"`,
		`arch = `,
	}
	for _, src := range cases {
		_, err := Parse([]byte(src))
		require.Error(t, err, src)
		assert.Equal(t, litmuserrors.CategorySetup, litmuserrors.Classify(err), src)
	}
}

func TestLoad(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, errors.Is(err, litmuserrors.ErrLoadArchConfig))

	path := filepath.Join(t.TempDir(), "tiny.toml")
	require.NoError(t, os.WriteFile(path, []byte(`arch = "Tiny"
default_sizeof = 8
[registers]
families = { R = 4 }
[registers.renames]
X = "R"
`), 0o644))
	ctx, err := Load(path)
	require.NoError(t, err)
	got, err := ctx.ResolveRegister("X3")
	require.NoError(t, err)
	assert.Equal(t, "R3", got)
	_, err = ctx.ResolveRegister("X4")
	assert.Error(t, err)
}
