package prefixindex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIndexAndExact(t *testing.T) {
	idx := New()
	idx.IndexText("file-1", "neural network training data")
	idx.IndexText("file-2", "baking sourdough bread at home")

	files := idx.FilesFor("neural")
	require.Equal(t, []string{"file-1"}, files)
	require.Nil(t, idx.Exact("nonexistent"))
}

func TestAutocompleteRanksByFrequencyThenLexical(t *testing.T) {
	idx := New()
	idx.IndexText("f1", "network network network")
	idx.IndexText("f2", "neural")
	idx.IndexText("f3", "nectar")

	results := idx.Autocomplete("ne", 3)
	require.Equal(t, []string{"network", "nectar", "neural"}, results)
}

func TestFuzzyBoundedByEditDistance(t *testing.T) {
	idx := New()
	idx.IndexText("f1", "training")
	matches := idx.Fuzzy("trainging", 2)
	require.Contains(t, matches, "training")
}

func TestFuzzyCapEnforced(t *testing.T) {
	idx := New()
	idx.IndexText("f1", "training")
	// "trailer" is 4 edits from "training": within the requested 5 but
	// beyond the cap of MaxFuzzyEdits (2).
	idx.IndexText("f2", "trailer")
	withinCap := idx.Fuzzy("training", 5)
	require.NotEmpty(t, withinCap)
	require.NotContains(t, withinCap, "trailer")
}

func TestTokenizeDropsShortAndStopWords(t *testing.T) {
	idx := New()
	tokens := idx.Tokenize("the a quick fox is in a box")
	require.Equal(t, []string{"quick", "fox", "box"}, tokens)
}

func TestRemoveSourcePrunesPostings(t *testing.T) {
	idx := New()
	idx.IndexText("f1", "lonely token")
	idx.RemoveSource("f1")
	require.Nil(t, idx.Exact("lonely"))
}
