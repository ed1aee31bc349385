package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// BlobStore persists attachment payloads and returns the URL they are served
// from. The managed blob service behind the real deployment satisfies the
// same contract; DiskStore is the local implementation.
type BlobStore interface {
	Save(ctx context.Context, name string, r io.Reader) (url string, size int64, err error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

type DiskStore struct {
	root string
}

func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Save(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	// Strip any path components so callers cannot write outside the root.
	name = filepath.Base(name)

	path := filepath.Join(s.root, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create blob file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		os.Remove(path)
		return "", 0, fmt.Errorf("failed to write blob: %w", err)
	}

	return "/media/" + name, size, nil
}

func (s *DiskStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.root, filepath.Base(name)))
}
