package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyByExtension(t *testing.T) {
	tx := Default()
	res := tx.Classify("photo.JPG", "image/jpeg", "")
	require.Equal(t, "photos", res.Tag)
	require.Equal(t, MatchedExtension, res.MatchedBy)
}

func TestClassifyByMimeWhenExtensionUnknown(t *testing.T) {
	tx := Default()
	res := tx.Classify("blob.xyz", "image/png", "")
	require.Equal(t, "photos", res.Tag)
	require.Equal(t, MatchedMime, res.MatchedBy)
}

func TestClassifyByMagicOverridesGenericDeclaredMime(t *testing.T) {
	tx := Default()
	res := tx.Classify("blob.xyz", "application/octet-stream", "video/mp4")
	require.Equal(t, "videos_mp4", res.Tag)
	require.Equal(t, MatchedMagic, res.MatchedBy)
}

func TestClassifyFallsBackToOther(t *testing.T) {
	tx := Default()
	res := tx.Classify("blob.xyz", "application/octet-stream", "")
	require.Equal(t, FallbackTag, res.Tag)
	require.Equal(t, MatchedDefault, res.MatchedBy)
}

func TestClassifyIsPure(t *testing.T) {
	tx := Default()
	a := tx.Classify("photo.jpg", "image/jpeg", "")
	b := tx.Classify("photo.jpg", "image/jpeg", "")
	require.Equal(t, a, b)
}

func TestThumbableGatesByTagOnly(t *testing.T) {
	tx := Default()
	require.True(t, tx.Thumbable("photos"))
	require.False(t, tx.Thumbable("audio"))
	require.False(t, tx.Thumbable("nonexistent"))
}

func TestNewRejectsMissingFallback(t *testing.T) {
	_, err := New(Config{Categories: []Tag{{Name: "photos"}}})
	require.Error(t, err)
}
