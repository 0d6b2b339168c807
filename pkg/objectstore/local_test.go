package objectstore

import (
	"context"
	"testing"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
	"github.com/stretchr/testify/require"
)

func TestLocalStorePutGetExists(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	exists, err := store.Exists(ctx, "photos/a.jpg")
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, store.Put(ctx, "photos/a.jpg", []byte("hello")))

	exists, err = store.Exists(ctx, "photos/a.jpg")
	require.NoError(t, err)
	require.True(t, exists)

	data, err := store.Get(ctx, "photos/a.jpg")
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestLocalStoreGetMissingReturnsValidationError(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "missing")
	require.Error(t, err)
	require.Equal(t, ingesterr.Validation, ingesterr.KindOf(err))
}

func TestLocalStoreRenameMovesObject(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "staging/tmp.part", []byte("payload")))

	require.NoError(t, store.Rename(ctx, "staging/tmp.part", "photos/2026/final.jpg"))

	exists, err := store.Exists(ctx, "staging/tmp.part")
	require.NoError(t, err)
	require.False(t, exists)

	data, err := store.Get(ctx, "photos/2026/final.jpg")
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))
}

func TestLocalStoreListPrefixReturnsSortedKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "photos/b.jpg", []byte("b")))
	require.NoError(t, store.Put(ctx, "photos/a.jpg", []byte("a")))

	keys, err := store.ListPrefix(ctx, "photos")
	require.NoError(t, err)
	require.Equal(t, []string{"photos/a.jpg", "photos/b.jpg"}, keys)
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "never-existed"))
}
