package driving

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// Pipeline runs the course workflow:
// link-accounts, fetch-document, extract-records, write-downstream.
type Pipeline interface {
	// Run executes every stage in order. The report is always returned;
	// the error is the fatal error that ended the run, if any.
	Run(ctx context.Context) (*domain.RunReport, error)

	// LinkAccounts runs only the first stage.
	LinkAccounts(ctx context.Context) ([]domain.Connection, error)

	// WriteRecords runs only the downstream stage for the given records.
	WriteRecords(ctx context.Context, userID string, records []domain.LessonRecord) (*domain.RunReport, error)
}
