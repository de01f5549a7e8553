package driving

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// ConnectionService manages the durable per-user, per-integration links.
type ConnectionService interface {
	// GetOrCreate returns an active connection, linking the integration first
	// if needed. Blocks while the operator completes consent.
	GetOrCreate(ctx context.Context, integration domain.Integration, userID string) (*domain.Connection, error)

	// UserID returns the stable local user identifier, creating it on first use.
	UserID(ctx context.Context) (string, error)

	// List returns every cached connection.
	List(ctx context.Context) ([]domain.Connection, error)

	// Reset forgets the connection for an integration, or all connections
	// when integration is empty.
	Reset(ctx context.Context, integration domain.IntegrationID) error
}
