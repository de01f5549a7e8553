// Package mcp runs platform operations through a Model Context Protocol
// server, either by calling the operation as a tool of its own name or by
// passing it to the server's generic execute tool.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure Platform implements the interface.
var _ driven.ToolPlatform = (*Platform)(nil)

// Strategy names.
const (
	StrategyDirect  = "mcp-direct"
	StrategyExecute = "mcp-execute"
)

// DefaultExecuteTool is the generic execute tool exposed by platform servers.
const DefaultExecuteTool = "COMPOSIO_EXECUTE_TOOL"

// Version is reported to the server during initialisation.
const Version = "0.1.0"

// Platform is a tool platform backed by an MCP client session.
// The session is opened on first use and shared by all strategies.
type Platform struct {
	transport   mcp.Transport
	executeTool string

	mu      sync.Mutex
	session *mcp.ClientSession
	tools   map[string]bool

	strategies []driven.CallStrategy
}

// Option configures a Platform.
type Option func(*Platform)

// WithExecuteTool sets the name of the server's generic execute tool.
func WithExecuteTool(name string) Option {
	return func(p *Platform) {
		if name != "" {
			p.executeTool = name
		}
	}
}

// NewPlatform creates a platform that connects over transport.
func NewPlatform(transport mcp.Transport, opts ...Option) *Platform {
	p := &Platform{
		transport:   transport,
		executeTool: DefaultExecuteTool,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.strategies = []driven.CallStrategy{
		&directStrategy{platform: p},
		&executeStrategy{platform: p},
	}
	return p
}

// CommandTransport launches an MCP server as a subprocess speaking stdio.
// The command line is split on whitespace.
func CommandTransport(commandLine string) (mcp.Transport, error) {
	args := strings.Fields(commandLine)
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: MCP command is empty", domain.ErrInvalidInput)
	}
	return &mcp.CommandTransport{Command: exec.Command(args[0], args[1:]...)}, nil
}

// HTTPTransport connects to a streamable HTTP MCP endpoint. When apiKey is
// set it is sent as the x-api-key header on every request.
func HTTPTransport(endpoint, apiKey string) mcp.Transport {
	client := http.DefaultClient
	if apiKey != "" {
		client = &http.Client{Transport: &keyTransport{key: apiKey, base: http.DefaultTransport}}
	}
	return &mcp.StreamableClientTransport{Endpoint: endpoint, HTTPClient: client}
}

type keyTransport struct {
	key  string
	base http.RoundTripper
}

func (t *keyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("x-api-key", t.key)
	return t.base.RoundTrip(req)
}

// Name returns the platform name.
func (p *Platform) Name() string { return "mcp" }

// Strategies returns the direct strategy then the execute-tool strategy.
func (p *Platform) Strategies() []driven.CallStrategy { return p.strategies }

// Close ends the session, if one was opened.
func (p *Platform) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	p.tools = nil
	return err
}

// connect opens the session and lists the server's tools once.
func (p *Platform) connect(ctx context.Context) (*mcp.ClientSession, map[string]bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		return p.session, p.tools, nil
	}
	if p.transport == nil {
		return nil, nil, domain.ErrNotImplemented
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "coursesync", Version: Version}, nil)
	session, err := client.Connect(ctx, p.transport, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to MCP server: %w", err)
	}

	tools := make(map[string]bool)
	params := &mcp.ListToolsParams{}
	for {
		res, err := session.ListTools(ctx, params)
		if err != nil {
			_ = session.Close()
			return nil, nil, fmt.Errorf("list MCP tools: %w", err)
		}
		for _, tool := range res.Tools {
			tools[tool.Name] = true
		}
		if res.NextCursor == "" {
			break
		}
		params.Cursor = res.NextCursor
	}
	logger.Debug("MCP server offers %d tools", len(tools))

	p.session = session
	p.tools = tools
	return session, tools, nil
}

func (p *Platform) call(ctx context.Context, strategy, tool string, args any, call domain.ToolCall) (domain.Value, error) {
	session, tools, err := p.connect(ctx)
	if err != nil {
		return domain.Null(), err
	}
	if !tools[tool] {
		return domain.Null(), domain.NewShapeError(strategy, fmt.Errorf("server has no tool %q", tool))
	}

	res, err := session.CallTool(ctx, &mcp.CallToolParams{Name: tool, Arguments: args})
	if err != nil {
		return domain.Null(), &domain.IntegrationError{
			Operation:   call.Operation,
			Integration: call.Integration,
			Strategy:    strategy,
			Message:     err.Error(),
			Err:         err,
		}
	}
	return resultValue(strategy, call, res)
}

type directStrategy struct {
	platform *Platform
}

func (s *directStrategy) Name() string { return StrategyDirect }

func (s *directStrategy) Attempt(ctx context.Context, call domain.ToolCall) (domain.Value, error) {
	return s.platform.call(ctx, StrategyDirect, call.Operation, call.Arguments, call)
}

type executeStrategy struct {
	platform *Platform
}

func (s *executeStrategy) Name() string { return StrategyExecute }

func (s *executeStrategy) Attempt(ctx context.Context, call domain.ToolCall) (domain.Value, error) {
	args := domain.Args(
		"tool_slug", call.Operation,
		"arguments", call.Arguments,
		"user_id", call.UserID,
	)
	return s.platform.call(ctx, StrategyExecute, s.platform.executeTool, args, call)
}

// resultValue converts a tool result into a payload. Structured content is
// preferred; text content is decoded as JSON when it parses.
func resultValue(strategy string, call domain.ToolCall, res *mcp.CallToolResult) (domain.Value, error) {
	text := contentText(res.Content)
	if res.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return domain.Null(), &domain.IntegrationError{
			Operation:   call.Operation,
			Integration: call.Integration,
			Strategy:    strategy,
			Message:     text,
		}
	}

	if res.StructuredContent != nil {
		return domain.FromAny(res.StructuredContent), nil
	}
	if text == "" {
		return domain.Null(), nil
	}
	if v, err := domain.ParseJSON([]byte(text)); err == nil {
		return v, nil
	}
	return domain.StringValue(text), nil
}

func contentText(content []mcp.Content) string {
	var parts []string
	for _, c := range content {
		if tc, ok := c.(*mcp.TextContent); ok && tc.Text != "" {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
