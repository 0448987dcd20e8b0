// Package cache provides an optional transcription result cache keyed by
// input digest and options, so resubmitting identical media skips the
// external tool entirely.
package cache

import (
	"context"
	"fmt"

	"github.com/1llyaa/subtitles-api/internal/domain"
)

// ResultCache maps a transcription key to the artifact ref it produced.
type ResultCache interface {
	// Lookup returns the cached artifact ref for the key, if any.
	Lookup(ctx context.Context, key string) (string, bool, error)

	// Store records the artifact ref produced for the key.
	Store(ctx context.Context, key, outputRef string) error
}

// Key builds a cache key from the input content digest and the options that
// influence the produced artifact. An empty digest disables caching.
func Key(digest string, opts domain.Options) string {
	if digest == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", digest, opts.Fingerprint())
}

// Noop is the cache used when no REDIS_URL is configured.
type Noop struct{}

func (Noop) Lookup(ctx context.Context, key string) (string, bool, error) { return "", false, nil }
func (Noop) Store(ctx context.Context, key, outputRef string) error       { return nil }
