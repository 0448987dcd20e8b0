// Package storage abstracts where input media and subtitle artifacts live.
// Refs are opaque keys owned by the configured backend; the job store only
// ever sees the ref strings.
package storage

import (
	"context"
	"io"
)

// BlobStore stores and retrieves media blobs by ref.
type BlobStore interface {
	// Save writes the blob under key and returns its ref. size may be -1
	// when unknown.
	Save(ctx context.Context, key string, r io.Reader, size int64) (string, error)

	// Open returns a reader for the blob.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Stat reports the blob size, or an error when the ref does not
	// resolve. This is the submission-time resolvability check.
	Stat(ctx context.Context, ref string) (int64, error)

	// Fetch copies the blob to a local path so a subprocess can read it.
	Fetch(ctx context.Context, ref, localPath string) error

	// Remove deletes the blob. Missing blobs are not an error.
	Remove(ctx context.Context, ref string) error
}
