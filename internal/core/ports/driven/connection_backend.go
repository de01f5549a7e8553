package driven

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// ConnectionBackend persists the connection cache.
// Save must be atomic: a reader never observes a partially written cache.
type ConnectionBackend interface {
	// Load reads the cache. A missing store yields an empty cache, not an error.
	Load(ctx context.Context) (domain.ConnectionCache, error)

	// Save replaces the stored cache with the given one.
	Save(ctx context.Context, cache domain.ConnectionCache) error
}
