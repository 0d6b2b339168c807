package pathsynth

import (
	"testing"
	"time"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeShape(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	path, err := Synthesize("photos", "acme", "photo.JPG", now, nil)
	require.NoError(t, err)
	require.Regexp(t, `^photos/2026/07/29/acme_20260729_103000_[0-9a-f]{12}\.jpg$`, path)
}

func TestSynthesizeNoExtension(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	path, err := Synthesize("other", "acme", "README", now, nil)
	require.NoError(t, err)
	require.NotContains(t, path[len(path)-3:], ".")
}

func TestSynthesizeRetriesOnCollision(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	calls := 0
	exists := func(string) (bool, error) {
		calls++
		return calls < 2, nil
	}
	path, err := Synthesize("photos", "acme", "a.jpg", now, exists)
	require.NoError(t, err)
	require.NotEmpty(t, path)
	require.Equal(t, 2, calls)
}

func TestSynthesizeExhaustsRetries(t *testing.T) {
	now := time.Date(2026, 7, 29, 10, 30, 0, 0, time.UTC)
	exists := func(string) (bool, error) { return true, nil }
	_, err := Synthesize("photos", "acme", "a.jpg", now, exists)
	require.Error(t, err)
	require.Equal(t, ingesterr.NameCollision, ingesterr.KindOf(err))
}
