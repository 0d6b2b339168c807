package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/nucleus/ingestcore/pkg/prefixindex"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	calls chan struct {
		tenantID    string
		text        string
		resultCount int
	}
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{calls: make(chan struct {
		tenantID    string
		text        string
		resultCount int
	}, 4)}
}

func (l *recordingLogger) LogQuery(_ context.Context, tenantID, text string, _ []float32, resultCount int) error {
	l.calls <- struct {
		tenantID    string
		text        string
		resultCount int
	}{tenantID, text, resultCount}
	return errors.New("query log store unavailable")
}

func TestSearchShortQueryForcesPrefixMode(t *testing.T) {
	idx := prefixindex.New()
	idx.IndexText("file-1", "neural network training data")
	c := New(idx, nil, nil, nil)

	resp, err := c.Search(context.Background(), "tenant-a", "ne", Options{})
	require.NoError(t, err)
	require.Equal(t, ModePrefix, resp.Mode)
}

func TestSearchExplicitPrefixMode(t *testing.T) {
	idx := prefixindex.New()
	idx.IndexText("file-1", "neural network training")
	idx.IndexText("file-2", "baking sourdough bread")
	c := New(idx, nil, nil, nil)

	resp, err := c.Search(context.Background(), "tenant-a", "neural", Options{Mode: ModePrefix})
	require.NoError(t, err)
	require.Equal(t, ModePrefix, resp.Mode)
	require.NotEmpty(t, resp.Hits)
	require.Equal(t, "file-1", resp.Hits[0].SourceFileID)
	require.Equal(t, -1, resp.Hits[0].Ordinal)
}

func TestSearchSemanticModeWithoutGatewayFails(t *testing.T) {
	c := New(prefixindex.New(), nil, nil, nil)
	_, err := c.Search(context.Background(), "tenant-a", "a long enough query", Options{Mode: ModeSemantic})
	require.Error(t, err)
	require.Equal(t, ingesterr.Internal, ingesterr.KindOf(err))
}

func TestSearchLogsQueryAsynchronouslyWithoutFailingOnLoggerError(t *testing.T) {
	idx := prefixindex.New()
	idx.IndexText("file-1", "neural network training")
	logger := newRecordingLogger()
	c := New(idx, nil, nil, logger)

	resp, err := c.Search(context.Background(), "tenant-a", "neural", Options{Mode: ModePrefix})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)

	select {
	case call := <-logger.calls:
		require.Equal(t, "tenant-a", call.tenantID)
		require.Equal(t, "neural", call.text)
		require.Equal(t, len(resp.Hits), call.resultCount)
	case <-time.After(time.Second):
		t.Fatal("expected async query log call")
	}
}

func TestRRFScoreDecreasesWithRank(t *testing.T) {
	first := rrfScore(1, rrfK)
	second := rrfScore(2, rrfK)
	require.Greater(t, first, second)
}
