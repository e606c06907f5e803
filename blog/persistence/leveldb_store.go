package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/dfryer1193/goblog-images/blog/domain"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var _ KV = (*LevelDBStore)(nil)

// LevelDBStore implements KV on a single goleveldb directory.
type LevelDBStore struct {
	db   *leveldb.DB
	path string
}

// OpenLevelDBStore opens (creating if needed) the leveldb database at path.
func OpenLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		// Most lookups for a fresh rendition are misses; the filter keeps
		// them off disk.
		Filter: filter.NewBloomFilter(10),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open leveldb at %s: %w", path, err)
	}
	return &LevelDBStore{db: db, path: path}, nil
}

func (s *LevelDBStore) Get(_ context.Context, key string) ([]byte, error) {
	data, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, domain.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}
	return data, nil
}

func (s *LevelDBStore) Set(_ context.Context, key string, data []byte) error {
	k := []byte(key)
	exists, err := s.db.Has(k, nil)
	if err != nil {
		return fmt.Errorf("failed to check cache entry: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.db.Put(k, data, nil); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}

func (s *LevelDBStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("prefix cannot be empty")
	}

	batch := new(leveldb.Batch)
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	for it.Next() {
		// Key's backing array is reused by the iterator.
		batch.Delete(append([]byte(nil), it.Key()...))
	}
	it.Release()
	if err := it.Error(); err != nil {
		return 0, fmt.Errorf("failed to iterate %s: %w", prefix, err)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return 0, fmt.Errorf("failed to delete entries under %s: %w", prefix, err)
	}
	return batch.Len(), nil
}

func (s *LevelDBStore) Close() error {
	return s.db.Close()
}
