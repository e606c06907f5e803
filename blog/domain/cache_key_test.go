package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveKey(t *testing.T) {
	mtime := time.UnixMilli(1700000000000)

	tests := []struct {
		name  string
		path  string
		width int
		want  CacheKey
	}{
		{
			name:  "resized",
			path:  "posts/logo.png",
			width: 155,
			want:  "fdebbad5c53034ee79c72730372fdabfd3445627c00f07af577f0e70d8e38811.png",
		},
		{
			name:  "original",
			path:  "posts/logo.png",
			width: 0,
			want:  "4de8467a4a6f42617ab7b3d4e1af92cfad017156a3b2b6812ac09429fecf4df0.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveKey(tt.path, tt.width, mtime))
		})
	}
}

func TestDeriveKey_Deterministic(t *testing.T) {
	mtime := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	a := DeriveKey("posts/a/photo.jpg", 900, mtime)
	b := DeriveKey("posts/a/photo.jpg", 900, mtime.In(time.FixedZone("CET", 3600)))

	assert.Equal(t, a, b, "key must not depend on the time zone of mtime")
	assert.True(t, strings.HasSuffix(a.String(), CacheKeySuffix))
	assert.Len(t, a.String(), 64+len(CacheKeySuffix))
}

func TestDeriveKey_Invalidation(t *testing.T) {
	mtime := time.UnixMilli(1700000000000)
	base := DeriveKey("posts/a/photo.jpg", 900, mtime)

	variants := map[string]CacheKey{
		"mtime":  DeriveKey("posts/a/photo.jpg", 900, mtime.Add(time.Millisecond)),
		"width":  DeriveKey("posts/a/photo.jpg", 1800, mtime),
		"path":   DeriveKey("posts/b/photo.jpg", 900, mtime),
		"orig":   DeriveKey("posts/a/photo.jpg", 0, mtime),
		"negate": DeriveKey("posts/a/photo.jpg", -1, mtime),
	}

	for name, k := range variants {
		if name == "negate" {
			assert.Equal(t, variants["orig"], k, "non-positive widths key the original")
			continue
		}
		assert.NotEqual(t, base, k, "changing %s must change the key", name)
	}
}
