package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure ConnectionBackend implements the interface.
var _ driven.ConnectionBackend = (*ConnectionBackend)(nil)

// ConnectionBackend is an in-memory implementation of driven.ConnectionBackend for testing.
type ConnectionBackend struct {
	mu    sync.RWMutex
	cache domain.ConnectionCache
	saves int
}

// NewConnectionBackend creates an empty in-memory backend.
func NewConnectionBackend() *ConnectionBackend {
	return &ConnectionBackend{cache: domain.NewConnectionCache()}
}

// Load returns a copy of the stored cache.
func (b *ConnectionBackend) Load(ctx context.Context) (domain.ConnectionCache, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConnectionCache{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cache.Clone(), nil
}

// Save replaces the stored cache with a copy of cache.
func (b *ConnectionBackend) Save(ctx context.Context, cache domain.ConnectionCache) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cache = cache.Clone()
	b.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (b *ConnectionBackend) Saves() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.saves
}
