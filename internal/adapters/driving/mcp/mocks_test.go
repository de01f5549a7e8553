package mcp

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// mockPipeline is a mock implementation of driving.Pipeline.
type mockPipeline struct {
	report  *domain.RunReport
	conns   []domain.Connection
	err     error
	written []domain.LessonRecord
	userID  string
}

func (m *mockPipeline) Run(_ context.Context) (*domain.RunReport, error) {
	return m.report, m.err
}

func (m *mockPipeline) LinkAccounts(_ context.Context) ([]domain.Connection, error) {
	return m.conns, m.err
}

func (m *mockPipeline) WriteRecords(_ context.Context, userID string, records []domain.LessonRecord) (*domain.RunReport, error) {
	m.userID = userID
	m.written = records
	return m.report, m.err
}

// mockExtractor is a mock implementation of driving.LessonExtractor.
type mockExtractor struct {
	records []domain.LessonRecord
	err     error
	path    string
	text    string
}

func (m *mockExtractor) ExtractFile(_ context.Context, path string) ([]domain.LessonRecord, error) {
	m.path = path
	return m.records, m.err
}

func (m *mockExtractor) Parse(text string) []domain.LessonRecord {
	m.text = text
	return m.records
}

// mockConnections is a mock implementation of driving.ConnectionService.
type mockConnections struct {
	conns []domain.Connection
	err   error
}

func (m *mockConnections) GetOrCreate(_ context.Context, _ domain.Integration, _ string) (*domain.Connection, error) {
	return nil, m.err
}

func (m *mockConnections) UserID(_ context.Context) (string, error) {
	return "user-1", m.err
}

func (m *mockConnections) List(_ context.Context) ([]domain.Connection, error) {
	return m.conns, m.err
}

func (m *mockConnections) Reset(_ context.Context, _ domain.IntegrationID) error {
	return m.err
}

var twoLessons = []domain.LessonRecord{
	{Name: "Week 1", Description: "Intro", Sequence: 0},
	{Name: "Week 2", Description: "Syntax", Sequence: 1},
}
