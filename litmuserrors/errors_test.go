package litmuserrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Category
	}{
		{nil, CategoryNone},
		{Unsupported("custom translation tables"), CategoryUnsupported},
		{fmt.Errorf("thread 1: %w", Unsupported("call")), CategoryUnsupported},
		{Wrap(ErrParseThread, "no code found"), CategoryFailed},
		{Wrap(ErrLoadArchConfig, "bad toml"), CategorySetup},
		{Wrap(ErrUnrepresentable, "pte0(x)"), CategoryInternal},
		{errors.New("plain"), CategoryFailed},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(c.err), fmt.Sprint(c.err))
	}
	assert.True(t, IsUnsupported(Unsupported("x")))
	assert.False(t, IsUnsupported(Wrap(ErrParseExp, "x")))
}

func TestErrorParts(t *testing.T) {
	err := Wrap(ErrPageTableSetup, "Multiple backed values for same address (%s and %s)", "5", "6")
	assert.True(t, errors.Is(err, ErrPageTableSetup))
	assert.Equal(t, "P7", GetErrorCode(err))
	assert.Equal(t, "PageTableSetup", GetErrorName(err))
	assert.Equal(t, "P7_PageTableSetup", GetErrorCodeWithName(err))
	assert.Equal(t, "page table setup failed: Multiple backed values for same address (5 and 6)", GetErrorDesc(err))

	assert.Equal(t, "", GetErrorCode(errors.New("no code")))
	assert.Equal(t, "No Error", GetErrorName(nil))
	assert.Equal(t, "unsupported", CategoryUnsupported.String())
}
