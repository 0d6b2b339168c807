package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitContiguousOrdinals(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 40)
	chunks := Split(text, DefaultOptions())
	require.NotEmpty(t, chunks)
	for i, c := range chunks {
		require.Equal(t, i, c.Ordinal)
		require.NotEmpty(t, strings.TrimSpace(c.Text))
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	text := strings.Repeat("paragraph one.\n\nparagraph two continues on.\n\n", 20)
	a := Split(text, DefaultOptions())
	b := Split(text, DefaultOptions())
	require.Equal(t, a, b)
}

func TestSplitEmptyText(t *testing.T) {
	require.Nil(t, Split("", DefaultOptions()))
}

func TestSplitDropsWhitespaceOnlyChunks(t *testing.T) {
	chunks := Split("   \n\n   ", DefaultOptions())
	require.Empty(t, chunks)
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	first := strings.Repeat("a", 480)
	second := strings.Repeat("b", 480)
	text := first + "\n\n" + second
	chunks := Split(text, Options{TargetChars: 500, OverlapChars: 50})
	require.NotEmpty(t, chunks)
	require.True(t, strings.HasSuffix(strings.TrimRight(chunks[0].Text, "\n"), "a"))
}
