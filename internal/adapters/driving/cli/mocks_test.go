package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// mockPipeline implements driving.Pipeline for testing.
type mockPipeline struct {
	report *domain.RunReport
	conns  []domain.Connection
	err    error
}

func (m *mockPipeline) Run(_ context.Context) (*domain.RunReport, error) {
	return m.report, m.err
}

func (m *mockPipeline) LinkAccounts(_ context.Context) ([]domain.Connection, error) {
	return m.conns, m.err
}

func (m *mockPipeline) WriteRecords(_ context.Context, _ string, _ []domain.LessonRecord) (*domain.RunReport, error) {
	return m.report, m.err
}

// mockConnectionService implements driving.ConnectionService for testing.
type mockConnectionService struct {
	conns []domain.Connection
	reset []domain.IntegrationID
	err   error
}

func (m *mockConnectionService) GetOrCreate(_ context.Context, _ domain.Integration, _ string) (*domain.Connection, error) {
	return nil, m.err
}

func (m *mockConnectionService) UserID(_ context.Context) (string, error) {
	return "user-1", m.err
}

func (m *mockConnectionService) List(_ context.Context) ([]domain.Connection, error) {
	return m.conns, m.err
}

func (m *mockConnectionService) Reset(_ context.Context, integration domain.IntegrationID) error {
	m.reset = append(m.reset, integration)
	return m.err
}

// mockExtractor implements driving.LessonExtractor for testing.
type mockExtractor struct {
	records []domain.LessonRecord
	err     error
}

func (m *mockExtractor) ExtractFile(_ context.Context, _ string) ([]domain.LessonRecord, error) {
	return m.records, m.err
}

func (m *mockExtractor) Parse(_ string) []domain.LessonRecord {
	return m.records
}

// mockLocator implements driving.ArtifactLocator for testing.
type mockLocator struct {
	handle    *domain.ArtifactHandle
	err       error
	directory string
	extension string
	payload   domain.Value
}

func (m *mockLocator) Locate(_ context.Context, extension, directory string, payload domain.Value) (*domain.ArtifactHandle, error) {
	m.extension = extension
	m.directory = directory
	m.payload = payload
	return m.handle, m.err
}

// setupTestServices installs the given services and restores the previous
// ones when the test ends.
func setupTestServices(t *testing.T, s *Services) {
	t.Helper()
	oldConn, oldPipeline, oldExtractor, oldLocator, oldDir := connectionService, coursePipeline, lessonExtractor, artifactLocator, downloadDir
	connectionService, coursePipeline, lessonExtractor, artifactLocator, downloadDir = nil, nil, nil, nil, ""
	SetServices(s)
	t.Cleanup(func() {
		connectionService, coursePipeline, lessonExtractor, artifactLocator, downloadDir = oldConn, oldPipeline, oldExtractor, oldLocator, oldDir
		closeFn = nil
	})
}

// execute runs the root command with args and returns everything written.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}
