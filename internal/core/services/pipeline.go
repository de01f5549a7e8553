package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.Pipeline = (*Pipeline)(nil)

// Operations names the platform operations used by the pipeline.
type Operations struct {
	FindFile     string
	DownloadFile string
	InsertRow    string
	CreateEvent  string
}

// DefaultOperations returns the operation names of the hosted tool platform.
func DefaultOperations() Operations {
	return Operations{
		FindFile:     "GOOGLEDRIVE_FIND_FILE",
		DownloadFile: "GOOGLEDRIVE_DOWNLOAD_FILE",
		InsertRow:    "NOTION_INSERT_ROW_DATABASE",
		CreateEvent:  "GOOGLECALENDAR_CREATE_EVENT",
	}
}

// PipelineConfig holds everything the pipeline needs besides its collaborators.
type PipelineConfig struct {
	// Files, Database and Calendar are the integrations to link.
	Files    domain.Integration
	Database domain.Integration
	Calendar domain.Integration

	// LinkAttempts is how many times each integration is linked before giving up.
	LinkAttempts int

	// FileName is the name of the source document in the file store.
	FileName string
	// FileID skips the find-by-name lookup when set.
	FileID string
	// Extension is the expected document extension.
	Extension string
	// DownloadDir is where downloads land.
	DownloadDir string

	Operations Operations

	// DatabaseID receives one row per lesson. Empty disables database writes.
	DatabaseID          string
	TitleProperty       string
	DescriptionProperty string

	// CalendarID receives one event per lesson. Empty disables calendar writes.
	CalendarID string
	Schedule   domain.Schedule

	// CallInterval is the minimum pause between downstream calls.
	CallInterval time.Duration
}

// Pipeline runs link-accounts, fetch-document, extract-records and
// write-downstream in order. It is the only component holding state across
// stages, and that state lives in the RunReport of a single run.
type Pipeline struct {
	connections driving.ConnectionService
	invoker     driving.ToolInvoker
	locator     driving.ArtifactLocator
	extractor   driving.LessonExtractor
	cfg         PipelineConfig
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewPipeline creates a pipeline.
func NewPipeline(
	connections driving.ConnectionService,
	invoker driving.ToolInvoker,
	locator driving.ArtifactLocator,
	extractor driving.LessonExtractor,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.LinkAttempts < 1 {
		cfg.LinkAttempts = 1
	}
	if cfg.Extension == "" {
		cfg.Extension = ".pdf"
	}
	if cfg.Operations == (Operations{}) {
		cfg.Operations = DefaultOperations()
	}
	if cfg.TitleProperty == "" {
		cfg.TitleProperty = "Name"
	}
	if cfg.DescriptionProperty == "" {
		cfg.DescriptionProperty = "Description"
	}

	limit := rate.Inf
	if cfg.CallInterval > 0 {
		limit = rate.Every(cfg.CallInterval)
	}

	return &Pipeline{
		connections: connections,
		invoker:     invoker,
		locator:     locator,
		extractor:   extractor,
		cfg:         cfg,
		limiter:     rate.NewLimiter(limit, 1),
		now:         time.Now,
	}
}

// Run executes every stage. The report is always returned; err is the
// fatal error of the failed stage, or a downstream write summary.
func (p *Pipeline) Run(ctx context.Context) (*domain.RunReport, error) {
	report := &domain.RunReport{StartedAt: p.now()}

	logger.Section("Link accounts")
	userID, err := p.connections.UserID(ctx)
	if err != nil {
		return p.fail(report, domain.StageLinkAccounts, err)
	}
	report.UserID = userID
	logger.Info("Using user id %s", userID)

	conns, err := p.link(ctx, userID)
	report.Connections = conns
	if err != nil {
		return p.fail(report, domain.StageLinkAccounts, err)
	}

	logger.Section("Fetch document")
	artifact, err := p.fetch(ctx, userID)
	if err != nil {
		return p.fail(report, domain.StageFetchDocument, err)
	}
	report.Artifact = artifact
	logger.Info("Document available at %s", artifact.Path)

	logger.Section("Extract records")
	records, err := p.extractor.ExtractFile(ctx, artifact.Path)
	if err != nil {
		return p.fail(report, domain.StageExtractRecords, err)
	}
	if len(records) == 0 {
		return p.fail(report, domain.StageExtractRecords,
			fmt.Errorf("%w from %s", domain.ErrNoRecordsExtracted, artifact.Path))
	}
	report.Records = records
	logger.Info("Parsed %d lessons", len(records))

	logger.Section("Write downstream")
	if err := p.write(ctx, userID, records, report); err != nil {
		return p.fail(report, domain.StageWriteDownstream, err)
	}
	return p.finish(report)
}

// LinkAccounts links every integration for the stable user.
func (p *Pipeline) LinkAccounts(ctx context.Context) ([]domain.Connection, error) {
	userID, err := p.connections.UserID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve user: %w", err)
	}
	return p.link(ctx, userID)
}

// WriteRecords runs the downstream stage alone. Records are written in
// Sequence order whatever order they arrive in.
func (p *Pipeline) WriteRecords(ctx context.Context, userID string, records []domain.LessonRecord) (*domain.RunReport, error) {
	records = bySequence(records)
	report := &domain.RunReport{StartedAt: p.now(), UserID: userID, Records: records}
	if len(records) == 0 {
		return p.fail(report, domain.StageWriteDownstream, domain.ErrNoRecordsExtracted)
	}
	if err := p.write(ctx, userID, records, report); err != nil {
		return p.fail(report, domain.StageWriteDownstream, err)
	}
	return p.finish(report)
}

// link runs GetOrCreate for each integration, retrying each up to
// LinkAttempts times. Every failing integration is named in the error.
func (p *Pipeline) link(ctx context.Context, userID string) ([]domain.Connection, error) {
	var (
		conns []domain.Connection
		errs  []error
	)

	for _, integration := range []domain.Integration{p.cfg.Files, p.cfg.Database, p.cfg.Calendar} {
		var lastErr error
		for attempt := 1; attempt <= p.cfg.LinkAttempts; attempt++ {
			conn, err := p.connections.GetOrCreate(ctx, integration, userID)
			if err == nil && conn.IsActive() {
				conns = append(conns, *conn)
				lastErr = nil
				break
			}
			if err == nil {
				err = fmt.Errorf("connection is %s", conn.Status)
			}
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			if attempt < p.cfg.LinkAttempts {
				logger.Warn("Linking %s failed (attempt %d of %d): %v",
					integration.ID.DisplayName(), attempt, p.cfg.LinkAttempts, err)
			}
		}
		if lastErr != nil {
			errs = append(errs, fmt.Errorf("%s: %w", integration.ID, lastErr))
		}
	}

	if len(errs) > 0 {
		return conns, errors.Join(errs...)
	}
	return conns, nil
}

// fetch finds and downloads the source document and locates it on disk.
func (p *Pipeline) fetch(ctx context.Context, userID string) (*domain.ArtifactHandle, error) {
	fileID := p.cfg.FileID
	if fileID == "" {
		logger.Info("Searching for file named exactly %q", p.cfg.FileName)
		res, err := p.invoke(ctx, domain.ToolCall{
			Operation:   p.cfg.Operations.FindFile,
			Arguments:   domain.Args("q", driveNameQuery(p.cfg.FileName)),
			Integration: p.cfg.Files.ID,
			UserID:      userID,
		})
		if err != nil {
			return nil, fmt.Errorf("find %s: %w", p.cfg.FileName, err)
		}
		fileID = FirstFileID(res.Payload)
		if fileID == "" {
			return nil, fmt.Errorf("find %s: no file with that name: %w", p.cfg.FileName, domain.ErrNotFound)
		}
		logger.Info("Found file id %s", fileID)
	}

	if p.cfg.DownloadDir != "" {
		if err := os.MkdirAll(p.cfg.DownloadDir, 0o755); err != nil {
			return nil, fmt.Errorf("create download dir: %w", err)
		}
	}

	res, err := p.invoke(ctx, domain.ToolCall{
		Operation:   p.cfg.Operations.DownloadFile,
		Arguments:   domain.Args("file_id", fileID),
		Integration: p.cfg.Files.ID,
		UserID:      userID,
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", fileID, err)
	}

	return p.locator.Locate(ctx, p.cfg.Extension, p.cfg.DownloadDir, res.Payload)
}

// write performs the database and calendar writes for each record in order.
// Write failures are collected in the report and never retried.
func (p *Pipeline) write(ctx context.Context, userID string, records []domain.LessonRecord, report *domain.RunReport) error {
	if p.cfg.DatabaseID == "" {
		logger.Info("No database id configured; skipping database rows")
	}
	if p.cfg.CalendarID == "" {
		logger.Info("No calendar id configured; skipping calendar events")
	}

	for idx, record := range bySequence(records) {
		if err := ctx.Err(); err != nil {
			return err
		}

		ok := true
		if p.cfg.DatabaseID != "" {
			logger.Info("Database row: %s", record.Name)
			if err := p.writeRow(ctx, userID, record); err != nil {
				report.WriteErrors = append(report.WriteErrors, p.writeError(idx, record, domain.TargetDatabase, p.cfg.Operations.InsertRow, p.cfg.Database.ID, err))
				ok = false
			}
		}
		if p.cfg.CalendarID != "" {
			start, _ := p.cfg.Schedule.Slot(record.Sequence)
			logger.Info("Calendar event: %s at %s (%s)", record.Name, start.Format(time.RFC3339), p.cfg.Schedule.TimezoneName())
			if err := p.writeEvent(ctx, userID, record); err != nil {
				report.WriteErrors = append(report.WriteErrors, p.writeError(idx, record, domain.TargetCalendar, p.cfg.Operations.CreateEvent, p.cfg.Calendar.ID, err))
				ok = false
			}
		}

		if ok {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%w: %d of %d records failed", domain.ErrDownstreamWrite, report.Failed, len(records))
	}
	return nil
}

// bySequence returns a copy of records stably sorted by Sequence.
func bySequence(records []domain.LessonRecord) []domain.LessonRecord {
	sorted := slices.Clone(records)
	slices.SortStableFunc(sorted, func(a, b domain.LessonRecord) int {
		return cmp.Compare(a.Sequence, b.Sequence)
	})
	return sorted
}

func (p *Pipeline) writeRow(ctx context.Context, userID string, record domain.LessonRecord) error {
	properties := []map[string]any{
		{"name": p.cfg.TitleProperty, "type": "title", "value": record.Name},
		{"name": p.cfg.DescriptionProperty, "type": "rich_text", "value": record.Description},
	}
	_, err := p.invoke(ctx, domain.ToolCall{
		Operation:   p.cfg.Operations.InsertRow,
		Arguments:   domain.Args("database_id", p.cfg.DatabaseID, "properties", properties),
		Integration: p.cfg.Database.ID,
		UserID:      userID,
	})
	return err
}

func (p *Pipeline) writeEvent(ctx context.Context, userID string, record domain.LessonRecord) error {
	start, end := p.cfg.Schedule.Slot(record.Sequence)
	duration := end.Sub(start)
	_, err := p.invoke(ctx, domain.ToolCall{
		Operation: p.cfg.Operations.CreateEvent,
		Arguments: domain.Args(
			"calendar_id", p.cfg.CalendarID,
			"start_datetime", start.Format("2006-01-02T15:04:05"),
			"timezone", p.cfg.Schedule.TimezoneName(),
			"summary", record.Name,
			"description", record.Description,
			"event_duration_hour", int(duration/time.Hour),
			"event_duration_minutes", int((duration%time.Hour)/time.Minute),
		),
		Integration: p.cfg.Calendar.ID,
		UserID:      userID,
	})
	return err
}

// invoke paces calls with the limiter before handing them to the invoker.
func (p *Pipeline) invoke(ctx context.Context, call domain.ToolCall) (*domain.ToolResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("wait for %s: %w", call.Operation, err)
	}
	return p.invoker.Invoke(ctx, call)
}

func (p *Pipeline) writeError(idx int, record domain.LessonRecord, target, operation string, integration domain.IntegrationID, err error) *domain.RecordWriteError {
	logger.Warn("%s write for %s failed: %v", target, record.Name, err)
	return &domain.RecordWriteError{
		Index:       idx,
		Name:        record.Name,
		Target:      target,
		Operation:   operation,
		Integration: integration,
		Err:         err,
	}
}

func (p *Pipeline) fail(report *domain.RunReport, stage domain.Stage, err error) (*domain.RunReport, error) {
	report.State = domain.StageFailed
	report.FailedStage = stage
	report.Err = &domain.StageError{Stage: stage, Err: err}
	report.FinishedAt = p.now()
	logger.Warn("Stage %s failed: %v", stage, err)
	return report, report.Err
}

func (p *Pipeline) finish(report *domain.RunReport) (*domain.RunReport, error) {
	report.State = domain.StageDone
	report.FinishedAt = p.now()
	logger.Info("Done: %d of %d records written", report.Succeeded, len(report.Records))
	return report, nil
}

// driveNameQuery builds an exact-name file search query.
func driveNameQuery(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	return fmt.Sprintf("name = '%s'", escaped)
}

// FirstFileID returns the id of the first file in a find-file payload.
// The payload may be a list of files, or a record holding "files" or "items",
// or a single file record. Ids are read from "id", "file_id" or "driveId".
func FirstFileID(payload domain.Value) string {
	list := payload
	if payload.Kind() == domain.KindMap {
		for _, key := range []string{"files", "items"} {
			if v, ok := payload.Get(key); ok && v.Kind() == domain.KindList {
				list = v
				break
			}
		}
	}

	first := list
	if list.Kind() == domain.KindList {
		var ok bool
		if first, ok = list.Index(0); !ok {
			return ""
		}
	}

	for _, key := range []string{"id", "file_id", "driveId"} {
		if v, ok := first.Get(key); ok && v.Text() != "" {
			return v.Text()
		}
	}
	return ""
}
