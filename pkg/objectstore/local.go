package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/nucleus/ingestcore/pkg/ingesterr"
)

// LocalStore persists objects under a filesystem root, mirroring the
// on-disk layout described in spec.md §6.
type LocalStore struct {
	root string
}

// NewLocalStore roots a LocalStore at dir, creating it if necessary.
func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "create object store root", err)
	}
	return &LocalStore{root: root}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *LocalStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	_, err := os.Stat(s.path(key))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, ingesterr.Wrap(ingesterr.StoreUnavailable, "stat object", err)
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := s.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "create object directory", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "write object", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ingesterr.New(ingesterr.Validation, "object not found: "+key)
		}
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "read object", err)
	}
	return data, nil
}

func (s *LocalStore) ListPrefix(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := s.path(prefix)
	var keys []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil {
			return relErr
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, ingesterr.Wrap(ingesterr.StoreUnavailable, "list objects", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "delete object", err)
	}
	return nil
}

func (s *LocalStore) Rename(ctx context.Context, fromKey, toKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	toPath := s.path(toKey)
	if err := os.MkdirAll(filepath.Dir(toPath), 0o755); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "create destination directory", err)
	}
	if err := os.Rename(s.path(fromKey), toPath); err != nil {
		return ingesterr.Wrap(ingesterr.StoreUnavailable, "rename object", err)
	}
	return nil
}
