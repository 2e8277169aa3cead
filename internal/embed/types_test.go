package embed

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateText_ShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "hello world", truncateText("hello world"))
}

func TestTruncateText_CutsAtWhitespaceBoundary(t *testing.T) {
	word := "abcdefghij" // 10 bytes
	text := strings.Repeat(word+" ", MaxEmbedTextBytes/len(word)+1)

	got := truncateText(text)

	assert.LessOrEqual(t, len(got), MaxEmbedTextBytes)
	assert.False(t, strings.HasSuffix(got, " "))
	if len(got) > 0 {
		assert.NotEqual(t, byte(' '), got[len(got)-1])
	}
}

func TestTruncateText_Deterministic(t *testing.T) {
	text := strings.Repeat("word ", 5000)
	assert.Equal(t, truncateText(text), truncateText(text))
}
