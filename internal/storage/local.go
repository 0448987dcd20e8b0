package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Ensure LocalStore implements BlobStore.
var _ BlobStore = (*LocalStore)(nil)

// LocalStore keeps blobs under a single root directory. Refs are paths
// relative to the root; path escapes are rejected.
type LocalStore struct {
	root string
}

// NewLocalStore creates the root directory if needed.
func NewLocalStore(root string) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("local storage: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("local storage: create root: %w", err)
	}
	return &LocalStore{root: abs}, nil
}

func (s *LocalStore) path(ref string) (string, error) {
	clean := filepath.Clean(ref)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("local storage: invalid ref %q", ref)
	}
	return filepath.Join(s.root, clean), nil
}

func (s *LocalStore) Save(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("local storage: mkdir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("local storage: create: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("local storage: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("local storage: close: %w", err)
	}
	return key, nil
}

func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("local storage: open %q: %w", ref, err)
	}
	return f, nil
}

func (s *LocalStore) Stat(ctx context.Context, ref string) (int64, error) {
	path, err := s.path(ref)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("local storage: stat %q: %w", ref, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("local storage: %q is a directory", ref)
	}
	return info.Size(), nil
}

func (s *LocalStore) Fetch(ctx context.Context, ref, localPath string) error {
	src, err := s.Open(ctx, ref)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("local storage: create %q: %w", localPath, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("local storage: copy: %w", err)
	}
	return dst.Close()
}

func (s *LocalStore) Remove(ctx context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("local storage: remove %q: %w", ref, err)
	}
	return nil
}
