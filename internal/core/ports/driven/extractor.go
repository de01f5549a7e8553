package driven

import "context"

// TextExtractor turns a document on disk into plain text.
type TextExtractor interface {
	// Extensions returns the file extensions handled, lower-case with a leading dot.
	Extensions() []string

	// Extract returns the text content of the file at path.
	Extract(ctx context.Context, path string) (string, error)
}
