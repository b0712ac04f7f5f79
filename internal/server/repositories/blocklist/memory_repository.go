package blocklist

import (
	"context"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]time.Time)}
}

func (r *MemoryRepository) Add(_ context.Context, tokenID string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.entries[tokenID]; !ok || expiresAt.After(cur) {
		r.entries[tokenID] = expiresAt
	}
	return nil
}

func (r *MemoryRepository) Contains(_ context.Context, tokenID string, now time.Time) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exp, ok := r.entries[tokenID]
	return ok && exp.After(now), nil
}

func (r *MemoryRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, exp := range r.entries {
		if !exp.After(before) {
			delete(r.entries, id)
			n++
		}
	}
	return n, nil
}
