package ingestcore

import (
	"testing"

	"github.com/nucleus/ingestcore/internal/config"
	"github.com/stretchr/testify/require"
)

func TestNewEmbeddingGatewayDefaultsToLocalProvider(t *testing.T) {
	cfg := &config.Config{EmbeddingProvider: "", EmbedDim: 8}
	gw, err := newEmbeddingGateway(cfg)
	require.NoError(t, err)
	require.Equal(t, 8, gw.Dimension())
}

func TestNewEmbeddingGatewayRejectsOpenAIWithoutKey(t *testing.T) {
	cfg := &config.Config{EmbeddingProvider: "openai", EmbedDim: 8}
	_, err := newEmbeddingGateway(cfg)
	require.Error(t, err)
}

func TestNewEmbeddingGatewayZeroProvider(t *testing.T) {
	cfg := &config.Config{EmbeddingProvider: "zero", EmbedDim: 4}
	gw, err := newEmbeddingGateway(cfg)
	require.NoError(t, err)
	require.Equal(t, 4, gw.Dimension())
}

func TestNewRequiresCatalogDatabaseURL(t *testing.T) {
	cfg := &config.Config{}
	_, err := New(cfg)
	require.Error(t, err)
}
