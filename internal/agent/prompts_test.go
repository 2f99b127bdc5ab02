package agent

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestClip(t *testing.T) {
	assert.Equal(t, "hello", clip("hello", 10))
	assert.Equal(t, "hel...[truncated]", clip("hello", 3))

	// a limit that lands inside "ü" backs off to the rune start
	got := clip("Müller", 2)
	assert.Equal(t, "M...[truncated]", got)

	long := strings.Repeat("é", promptResultLimit)
	got = clip(long, promptResultLimit+1)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "...[truncated]"))
}
