package persistence

import (
	"context"
	"fmt"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/rs/zerolog/log"
)

const (
	// CurrentPrefix namespaces entries written with the current key schema.
	CurrentPrefix = "v1-images"
)

// retiredPrefixes lists namespaces from earlier key schemas. Their entries can
// never be hit again and are removed once at startup.
var retiredPrefixes = []string{"v0-images"}

// KV is a flat, durable key -> blob store.
//
// Get returns domain.ErrCacheMiss for absent keys. Implementations may serve
// reads with eventual consistency.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte) error

	// DeletePrefix removes every key starting with prefix and reports how many went.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	Close() error
}

// Cache implements domain.CacheStore on top of a KV, keeping entries under a
// schema-version namespace.
type Cache struct {
	kv     KV
	prefix string
}

var _ domain.CacheStore = (*Cache)(nil)

// NewCache returns a Cache that stores entries under CurrentPrefix.
func NewCache(kv KV) *Cache {
	return &Cache{
		kv:     kv,
		prefix: CurrentPrefix,
	}
}

func (c *Cache) storageKey(key domain.CacheKey) string {
	return c.prefix + "/" + key.String()
}

// Get returns the bytes stored for key, or domain.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key domain.CacheKey) ([]byte, error) {
	return c.kv.Get(ctx, c.storageKey(key))
}

// Set stores data for key.
func (c *Cache) Set(ctx context.Context, key domain.CacheKey, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("refusing to cache empty image for key %s", key)
	}
	return c.kv.Set(ctx, c.storageKey(key), data)
}

// PurgeRetired deletes every entry stored under a retired key-schema prefix.
// It is meant to run once at process startup.
func (c *Cache) PurgeRetired(ctx context.Context) (int, error) {
	total := 0
	for _, prefix := range retiredPrefixes {
		if prefix == c.prefix {
			continue
		}
		n, err := c.kv.DeletePrefix(ctx, prefix+"/")
		if err != nil {
			return total, fmt.Errorf("failed to purge cache entries under %s: %w", prefix, err)
		}
		if n > 0 {
			log.Info().Str("prefix", prefix).Int("deleted", n).Msg("Purged retired image cache entries")
		}
		total += n
	}
	return total, nil
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.kv.Close()
}
