package domain

import (
	"context"
	"time"
)

// ImageSource is a registered image file as seen at request time.
// ModTime is read from the filesystem on every request so that cache keys
// follow on-disk changes.
type ImageSource struct {
	ID      string
	Path    string
	ModTime time.Time
}

// ResizeRequest describes what a caller wants for a source image.
// Exactly one of Width or Original is set.
type ResizeRequest struct {
	SourcePath string
	Width      int
	Original   bool
}

// Registry maps opaque image ids to filesystem paths.
type Registry interface {
	// Lookup returns the path registered for id, or false if id is unknown.
	Lookup(id string) (string, bool)
}

// CacheStore is a persistent key -> blob mapping for resized images.
//
// Reads may be eventually consistent: a Get issued after a concurrent Set for
// the same key is allowed to return ErrCacheMiss. Callers must treat a miss as
// "do the work again", never as an error.
type CacheStore interface {
	// Get returns the cached bytes for key or ErrCacheMiss.
	Get(ctx context.Context, key CacheKey) ([]byte, error)

	// Set stores data under key. Entries are immutable, so a second Set for an
	// existing key keeps the first value.
	Set(ctx context.Context, key CacheKey, data []byte) error
}
