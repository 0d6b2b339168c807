// Package objectstore abstracts byte storage for staging, canonical
// media, and thumbnail writes. It backs C3's filesystem operations and
// is the one place spec.md's on-disk layout (staging/<tenant>/<uuid>.part,
// <category>/<date>/..., thumbnails/...) is interpreted into concrete
// reads and writes.
package objectstore

import "context"

// Store abstracts the minimal object operations the media pipeline
// needs: existence checks, atomic-enough puts, reads, prefix listing,
// and deletion. LocalStore backs filesystem-rooted deployments; S3Store
// backs MinIO/S3-compatible deployments.
type Store interface {
	Exists(ctx context.Context, key string) (bool, error)
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	ListPrefix(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
	// Rename moves an object from one key to another, used for the
	// staging-to-canonical atomic rename spec.md §4.3 requires.
	Rename(ctx context.Context, fromKey, toKey string) error
}
