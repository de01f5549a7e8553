// Package plaintext reads text and markdown documents as they are.
package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure Extractor implements the interface.
var _ driven.TextExtractor = (*Extractor)(nil)

// Extractor returns file contents verbatim.
type Extractor struct{}

// New creates a plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extensions returns the handled file extensions.
func (e *Extractor) Extensions() []string {
	return []string{".txt", ".md", ".markdown", ".text"}
}

// Extract reads the file at path. A leading byte order mark is dropped.
func (e *Extractor) Extract(_ context.Context, path string) (string, error) {
	if path == "" {
		return "", domain.ErrInvalidInput
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s is not UTF-8 text", domain.ErrUnsupportedType, path)
	}
	return strings.TrimPrefix(string(data), "\ufeff"), nil
}
