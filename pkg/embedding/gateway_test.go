package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/stretchr/testify/require"
)

func TestGatewayRejectsNonPositiveDimension(t *testing.T) {
	_, err := New(NewZeroProvider(0), 0)
	require.Error(t, err)
}

func TestGatewayEmbedLocalProviderDeterministic(t *testing.T) {
	gw, err := New(NewLocalProvider(64), 64)
	require.NoError(t, err)
	a, err := gw.Embed(context.Background(), "neural network training")
	require.NoError(t, err)
	b, err := gw.Embed(context.Background(), "neural network training")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Len(t, a, 64)
}

type flakyProvider struct {
	failures int
	calls    int
	dim      int
}

func (p *flakyProvider) EmbedText(_ string, texts []string) ([][]float32, error) {
	p.calls++
	if p.calls <= p.failures {
		return nil, errors.New("transient failure")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, p.dim)
	}
	return out, nil
}

func (p *flakyProvider) ModelName() string { return "flaky" }

func TestGatewayRetriesTransientFailures(t *testing.T) {
	provider := &flakyProvider{failures: 2, dim: 8}
	gw, err := New(provider, 8, WithMaxAttempts(3), WithBaseDelay(time.Millisecond))
	require.NoError(t, err)
	_, err = gw.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Equal(t, 3, provider.calls)
}

func TestGatewayExhaustsRetriesAsEmbeddingUnavailable(t *testing.T) {
	provider := &flakyProvider{failures: 10, dim: 8}
	gw, err := New(provider, 8, WithMaxAttempts(2), WithBaseDelay(time.Millisecond))
	require.NoError(t, err)
	_, err = gw.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, ingesterr.EmbeddingUnavailable, ingesterr.KindOf(err))
}

func TestGatewayRejectsWrongDimensionVector(t *testing.T) {
	gw, err := New(NewZeroProvider(8), 16)
	require.NoError(t, err)
	_, err = gw.Embed(context.Background(), "hello")
	require.Error(t, err)
	require.Equal(t, ingesterr.Internal, ingesterr.KindOf(err))
}
