package mcp

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("extracts from path", func(t *testing.T) {
		ext := &mockExtractor{records: twoLessons}
		server := newTestServer(t, &Ports{Pipeline: &mockPipeline{}, Extractor: ext})

		_, out, err := server.handleExtract(ctx, nil, ExtractInput{Path: "/tmp/syllabus.pdf"})

		require.NoError(t, err)
		assert.Equal(t, "/tmp/syllabus.pdf", ext.path)
		assert.Equal(t, 2, out.Count)
		assert.Equal(t, LessonOutput{Name: "Week 2", Description: "Syntax", Sequence: 1}, out.Lessons[1])
	})

	t.Run("parses text when no path", func(t *testing.T) {
		ext := &mockExtractor{records: twoLessons[:1]}
		server := newTestServer(t, &Ports{Pipeline: &mockPipeline{}, Extractor: ext})

		_, out, err := server.handleExtract(ctx, nil, ExtractInput{Text: "Week 1 Intro"})

		require.NoError(t, err)
		assert.Equal(t, "Week 1 Intro", ext.text)
		assert.Equal(t, 1, out.Count)
	})

	t.Run("requires input", func(t *testing.T) {
		server := newTestServer(t, &Ports{Pipeline: &mockPipeline{}, Extractor: &mockExtractor{}})

		_, _, err := server.handleExtract(ctx, nil, ExtractInput{Text: "  "})

		assert.Error(t, err)
	})

	t.Run("returns extraction error", func(t *testing.T) {
		ext := &mockExtractor{err: domain.ErrExtractorNotFound}
		server := newTestServer(t, &Ports{Pipeline: &mockPipeline{}, Extractor: ext})

		_, _, err := server.handleExtract(ctx, nil, ExtractInput{Path: "a.doc"})

		assert.ErrorIs(t, err, domain.ErrExtractorNotFound)
	})
}

func TestServer_handleRun(t *testing.T) {
	ctx := context.Background()

	report := &domain.RunReport{
		State:     domain.StageDone,
		UserID:    "user-1",
		Artifact:  &domain.ArtifactHandle{Path: "/dl/syllabus.pdf", Verified: true},
		Records:   twoLessons,
		Succeeded: 1,
		Failed:    1,
		WriteErrors: []*domain.RecordWriteError{{
			Index: 1, Name: "Week 2", Target: domain.TargetCalendar,
			Operation: "GOOGLECALENDAR_CREATE_EVENT", Err: errors.New("quota"),
		}},
	}
	server := newTestServer(t, &Ports{Pipeline: &mockPipeline{report: report}, Extractor: &mockExtractor{}})

	_, out, err := server.handleRun(ctx, nil, RunInput{})

	require.NoError(t, err)
	assert.Equal(t, "done", out.State)
	assert.Equal(t, "/dl/syllabus.pdf", out.Artifact)
	assert.Equal(t, 2, out.Records)
	assert.Equal(t, 1, out.Failed)
	require.Len(t, out.WriteErrors, 1)
	assert.Contains(t, out.WriteErrors[0], "quota")
	assert.Same(t, report, server.lastReport())
}

func TestServer_handleRun_Failed(t *testing.T) {
	report := &domain.RunReport{
		State:       domain.StageFailed,
		FailedStage: domain.StageFetchDocument,
		Err:         domain.ErrArtifactNotFound,
	}
	server := newTestServer(t, &Ports{
		Pipeline:  &mockPipeline{report: report, err: domain.ErrArtifactNotFound},
		Extractor: &mockExtractor{},
	})

	_, out, err := server.handleRun(context.Background(), nil, RunInput{})

	require.NoError(t, err)
	assert.Equal(t, "failed", out.State)
	assert.Equal(t, "fetch-document", out.FailedStage)
	assert.NotEmpty(t, out.Error)
}

func TestServer_handleWrite(t *testing.T) {
	ctx := context.Background()

	t.Run("writes lessons for the stable user", func(t *testing.T) {
		pipeline := &mockPipeline{report: &domain.RunReport{State: domain.StageDone, Succeeded: 2}}
		server := newTestServer(t, &Ports{
			Pipeline:    pipeline,
			Extractor:   &mockExtractor{},
			Connections: &mockConnections{},
		})

		_, out, err := server.handleWrite(ctx, nil, WriteInput{Lessons: toLessonOutputs(twoLessons)})

		require.NoError(t, err)
		assert.Equal(t, "user-1", pipeline.userID)
		assert.Equal(t, twoLessons, pipeline.written)
		assert.Equal(t, 2, out.Succeeded)
	})

	t.Run("requires connection service", func(t *testing.T) {
		server := newTestServer(t, &Ports{Pipeline: &mockPipeline{}, Extractor: &mockExtractor{}})

		_, _, err := server.handleWrite(ctx, nil, WriteInput{})

		assert.Error(t, err)
	})
}

func TestServer_handleLink(t *testing.T) {
	pipeline := &mockPipeline{
		conns: []domain.Connection{{IntegrationID: domain.IntegrationFiles, Status: domain.ConnectionActive}},
		err:   domain.ErrAuthorizationTimeout,
	}
	server := newTestServer(t, &Ports{Pipeline: pipeline, Extractor: &mockExtractor{}})

	_, out, err := server.handleLink(context.Background(), nil, RunInput{})

	assert.ErrorIs(t, err, domain.ErrAuthorizationTimeout)
	require.Len(t, out.Connections, 1)
	assert.Equal(t, "active", out.Connections[0].Status)
}

func TestToRunOutput_Nil(t *testing.T) {
	out := toRunOutput(nil)
	assert.Equal(t, "failed", out.State)
}
