package driven

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// CallStrategy is one way of invoking a named operation on the platform.
//
// Attempt returns an error matching domain.ErrShapeMismatch when the platform
// rejected the call signature itself, so the next strategy can be tried.
// Any other error is final.
type CallStrategy interface {
	// Name identifies the strategy in logs and errors.
	Name() string

	// Attempt performs the call and returns the raw payload.
	Attempt(ctx context.Context, call domain.ToolCall) (domain.Value, error)
}

// ToolPlatform is an integration platform able to run named operations.
type ToolPlatform interface {
	// Name identifies the platform (e.g. "rest", "mcp", "native").
	Name() string

	// Strategies returns the candidate call strategies in preference order.
	Strategies() []CallStrategy
}
