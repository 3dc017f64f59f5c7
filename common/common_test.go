package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColorize(t *testing.T) {
	assert.Equal(t, "ok", Colorize(false, "ok", ColorGreen))
	assert.Equal(t, "ok", Colorize(true, "ok"))
	assert.Equal(t, "\033[32m\033[1mok\033[0m", Colorize(true, "ok", ColorGreen, ColorBold))
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "0123abcd", shortHash("0123abcdef"))
	assert.Equal(t, "abc", shortHash("abc"))
	assert.NotEmpty(t, GetCommitHash())
}
