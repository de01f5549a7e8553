package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// uriScheme is the custom URI scheme for coursesync resources.
	uriScheme = "coursesync://"

	connectionsURI = uriScheme + "connections"
	lastRunURI     = uriScheme + "runs/last"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         connectionsURI,
		Name:        "connections",
		Description: "Cached integration connections",
		MIMEType:    "application/json",
	}, s.handleConnectionsResource)

	s.server.AddResource(&mcp.Resource{
		URI:         lastRunURI,
		Name:        "last-run",
		Description: "Summary of the last pipeline run started from this server",
		MIMEType:    "application/json",
	}, s.handleLastRunResource)
}

// handleConnectionsResource lists cached connections without their tokens.
func (s *Server) handleConnectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Connections == nil {
		return jsonResource(req.Params.URI, []ConnectionOutput{})
	}

	conns, err := s.ports.Connections.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}

	infos := make([]ConnectionOutput, len(conns))
	for i, c := range conns {
		infos[i] = ConnectionOutput{
			Integration: string(c.IntegrationID),
			Status:      string(c.Status),
			RedirectURL: c.RedirectURL,
		}
	}
	return jsonResource(req.Params.URI, infos)
}

// handleLastRunResource returns the last recorded run.
func (s *Server) handleLastRunResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	report := s.lastReport()
	if report == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	return jsonResource(req.Params.URI, toRunOutput(report))
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}
