package rankcache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	payload  []byte
	cachedAt time.Time
}

// MemoryBackend keeps snapshots in process memory. Suitable for a single
// instance and for tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]memoryEntry)}
}

// Load implements Backend.
func (b *MemoryBackend) Load(_ context.Context, keyword string) ([]byte, time.Time, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	e, ok := b.entries[keyword]
	if !ok {
		return nil, time.Time{}, ErrNotFound
	}
	return e.payload, e.cachedAt, nil
}

// Store implements Backend.
func (b *MemoryBackend) Store(_ context.Context, keyword string, payload []byte, cachedAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries[keyword] = memoryEntry{payload: append([]byte(nil), payload...), cachedAt: cachedAt}
	return nil
}
