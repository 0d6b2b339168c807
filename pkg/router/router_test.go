package router

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCanonicalizeOrdersMapKeysDeterministically(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2, "c": map[string]any{"z": 1, "y": 2}}
	b := map[string]any{"c": map[string]any{"y": 2, "z": 1}, "a": 2, "b": 1}

	encA, err := canonicalize(a)
	require.NoError(t, err)
	encB, err := canonicalize(b)
	require.NoError(t, err)

	require.Equal(t, string(encA), string(encB))
	require.Equal(t, `{"a":2,"b":1,"c":{"y":2,"z":1}}`, string(encA))
}

func TestCanonicalizePreservesArrayOrder(t *testing.T) {
	tree := []any{
		map[string]any{"b": 1, "a": 2},
		map[string]any{"d": 3, "c": 4},
	}
	enc, err := canonicalize(tree)
	require.NoError(t, err)
	require.Equal(t, `[{"a":2,"b":1},{"c":4,"d":3}]`, string(enc))
}

func TestCanonicalizeScalar(t *testing.T) {
	enc, err := canonicalize("hello")
	require.NoError(t, err)
	require.Equal(t, `"hello"`, string(enc))
}
