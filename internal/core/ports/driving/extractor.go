package driving

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// LessonExtractor turns a course document into ordered lesson records.
type LessonExtractor interface {
	// ExtractFile reads the document at path and parses its lessons.
	ExtractFile(ctx context.Context, path string) ([]domain.LessonRecord, error)

	// Parse parses lessons from already extracted text.
	Parse(text string) []domain.LessonRecord
}
