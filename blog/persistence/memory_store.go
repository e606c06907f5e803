package persistence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dfryer1193/goblog-images/blog/domain"
)

var _ KV = (*MemoryStore)(nil)

type memoryEntry struct {
	data      []byte
	visibleAt time.Time
}

// MemoryStore is an in-process KV. With a non-zero visibility delay, a Set only
// becomes readable after that delay, which models an eventually consistent
// backend.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	delay   time.Duration
	now     func() time.Time
}

// NewMemoryStore returns an empty store whose writes become visible after delay.
func NewMemoryStore(delay time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		delay:   delay,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok || s.now().Before(e.visibleAt) {
		return nil, domain.ErrCacheMiss
	}
	return append([]byte(nil), e.data...), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		return nil
	}
	s.entries[key] = memoryEntry{
		data:      append([]byte(nil), data...),
		visibleAt: s.now().Add(s.delay),
	}
	return nil
}

func (s *MemoryStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	if prefix == "" {
		return 0, fmt.Errorf("prefix cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

// Len reports how many entries are stored, visible or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) Close() error {
	return nil
}
