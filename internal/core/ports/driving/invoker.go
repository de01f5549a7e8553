package driving

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// ToolInvoker runs named operations against integrations whose call
// signature is not fixed at compile time.
type ToolInvoker interface {
	// Invoke runs the call and returns the normalised result.
	Invoke(ctx context.Context, call domain.ToolCall) (*domain.ToolResult, error)
}

// ArtifactLocator finds or materialises a downloaded file on local disk.
type ArtifactLocator interface {
	// Locate returns a verified handle to a file with the given extension.
	Locate(ctx context.Context, extension, directory string, payload domain.Value) (*domain.ArtifactHandle, error)
}
