package domain

import "time"

// Stage is a state of the course pipeline. Stages run strictly in order.
type Stage string

// Pipeline stages.
const (
	StageLinkAccounts    Stage = "link-accounts"
	StageFetchDocument   Stage = "fetch-document"
	StageExtractRecords  Stage = "extract-records"
	StageWriteDownstream Stage = "write-downstream"
	StageDone            Stage = "done"
	StageFailed          Stage = "failed"
)

// Write targets of the downstream stage.
const (
	TargetDatabase = "database"
	TargetCalendar = "calendar"
)

// RunReport summarises one pipeline run.
type RunReport struct {
	// State is StageDone or StageFailed once the run finishes.
	State Stage
	// FailedStage is the stage that failed, if any.
	FailedStage Stage
	// UserID is the user the run acted for.
	UserID string
	// Connections are the linked connections.
	Connections []Connection
	// Artifact is the located document.
	Artifact *ArtifactHandle
	// Records are the extracted lessons.
	Records []LessonRecord
	// Succeeded counts records whose every write succeeded.
	Succeeded int
	// Failed counts records with at least one failed write.
	Failed int
	// WriteErrors are the per-record write failures in the order they happened.
	WriteErrors []*RecordWriteError
	// Err is the fatal error that ended the run, if any.
	Err error
	// StartedAt is when the run began.
	StartedAt time.Time
	// FinishedAt is when the run ended.
	FinishedAt time.Time
}

// OK returns true if the run reached StageDone.
func (r *RunReport) OK() bool {
	return r != nil && r.State == StageDone
}

// ExitCode returns the process exit code for the run.
func (r *RunReport) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
