package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/opencontainers/go-digest"
)

// CacheKeySuffix is appended to every derived key. Resized output is always PNG.
const CacheKeySuffix = ".png"

// originalWidth stands in for the width field when the full-size image is keyed.
const originalWidth = "orig"

// CacheKey is an opaque, deterministic name for one resized rendition.
type CacheKey string

func (k CacheKey) String() string {
	return string(k)
}

// DeriveKey returns the cache key for path rendered at width, given the
// source's modification time. A width <= 0 keys the original size.
//
// The same triple always yields the same key, across restarts. Any change to
// mtime yields a new key, which is the only way entries are invalidated.
func DeriveKey(path string, width int, mtime time.Time) CacheKey {
	w := originalWidth
	if width > 0 {
		w = strconv.Itoa(width)
	}
	data := fmt.Sprintf("%s:%s:%d%s", path, w, mtime.UnixMilli(), CacheKeySuffix)
	return CacheKey(digest.SHA256.FromString(data).Encoded() + CacheKeySuffix)
}
