package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// ExtractInput is the input schema for the extract_lessons tool.
type ExtractInput struct {
	Path string `json:"path,omitempty" jsonschema:"local path of the course document"`
	Text string `json:"text,omitempty" jsonschema:"document text to parse when no path is given"`
}

// LessonOutput is one extracted lesson.
type LessonOutput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Sequence    int    `json:"sequence"`
}

// ExtractOutput is the output schema for the extract_lessons tool.
type ExtractOutput struct {
	Lessons []LessonOutput `json:"lessons"`
	Count   int            `json:"count"`
}

// RunInput is the input schema for the run_pipeline tool.
type RunInput struct{}

// WriteInput is the input schema for the write_lessons tool.
type WriteInput struct {
	Lessons []LessonOutput `json:"lessons" jsonschema:"lessons to write to the database and calendar"`
}

// RunOutput summarises a pipeline run.
type RunOutput struct {
	State       string   `json:"state"`
	FailedStage string   `json:"failed_stage,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Artifact    string   `json:"artifact,omitempty"`
	Records     int      `json:"records"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	WriteErrors []string `json:"write_errors,omitempty"`
	Error       string   `json:"error,omitempty"`
}

// ConnectionOutput is one linked integration.
type ConnectionOutput struct {
	Integration string `json:"integration"`
	Status      string `json:"status"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// LinkOutput is the output schema for the link_accounts tool.
type LinkOutput struct {
	Connections []ConnectionOutput `json:"connections"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "extract_lessons",
		Description: "Extract ordered lessons from a course document or its text",
	}, s.handleExtract)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "link_accounts",
		Description: "Link the file store, database and calendar integrations",
	}, s.handleLink)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "write_lessons",
		Description: "Write lessons as database rows and calendar events",
	}, s.handleWrite)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "run_pipeline",
		Description: "Fetch the course document, extract lessons and write them downstream",
	}, s.handleRun)
}

func (s *Server) handleExtract(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ExtractInput,
) (*mcp.CallToolResult, ExtractOutput, error) {
	var records []domain.LessonRecord
	switch {
	case strings.TrimSpace(input.Path) != "":
		var err error
		records, err = s.ports.Extractor.ExtractFile(ctx, input.Path)
		if err != nil {
			return nil, ExtractOutput{}, err
		}
	case strings.TrimSpace(input.Text) != "":
		records = s.ports.Extractor.Parse(input.Text)
	default:
		return nil, ExtractOutput{}, errors.New("either path or text is required")
	}

	return nil, ExtractOutput{Lessons: toLessonOutputs(records), Count: len(records)}, nil
}

func (s *Server) handleLink(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ RunInput,
) (*mcp.CallToolResult, LinkOutput, error) {
	conns, err := s.ports.Pipeline.LinkAccounts(ctx)
	out := LinkOutput{Connections: make([]ConnectionOutput, 0, len(conns))}
	for _, c := range conns {
		out.Connections = append(out.Connections, ConnectionOutput{
			Integration: string(c.IntegrationID),
			Status:      string(c.Status),
			RedirectURL: c.RedirectURL,
		})
	}
	if err != nil {
		return nil, out, err
	}
	return nil, out, nil
}

func (s *Server) handleWrite(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input WriteInput,
) (*mcp.CallToolResult, RunOutput, error) {
	if s.ports.Connections == nil {
		return nil, RunOutput{}, errors.New("connection service not configured")
	}
	userID, err := s.ports.Connections.UserID(ctx)
	if err != nil {
		return nil, RunOutput{}, err
	}

	records := make([]domain.LessonRecord, len(input.Lessons))
	for i, l := range input.Lessons {
		records[i] = domain.LessonRecord{Name: l.Name, Description: l.Description, Sequence: l.Sequence}
	}

	report, _ := s.ports.Pipeline.WriteRecords(ctx, userID, records)
	s.recordRun(report)
	return nil, toRunOutput(report), nil
}

func (s *Server) handleRun(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ RunInput,
) (*mcp.CallToolResult, RunOutput, error) {
	report, _ := s.ports.Pipeline.Run(ctx)
	s.recordRun(report)
	return nil, toRunOutput(report), nil
}

func toLessonOutputs(records []domain.LessonRecord) []LessonOutput {
	out := make([]LessonOutput, len(records))
	for i, r := range records {
		out[i] = LessonOutput{Name: r.Name, Description: r.Description, Sequence: r.Sequence}
	}
	return out
}

func toRunOutput(r *domain.RunReport) RunOutput {
	if r == nil {
		return RunOutput{State: string(domain.StageFailed), Error: "no report"}
	}
	out := RunOutput{
		State:       string(r.State),
		FailedStage: string(r.FailedStage),
		UserID:      r.UserID,
		Records:     len(r.Records),
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
	}
	if r.Artifact != nil {
		out.Artifact = r.Artifact.Path
	}
	for _, we := range r.WriteErrors {
		out.WriteErrors = append(out.WriteErrors, we.Error())
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}
