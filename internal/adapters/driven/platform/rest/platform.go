package rest

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure Platform implements the interface.
var _ driven.ToolPlatform = (*Platform)(nil)

// Strategy names, in the order they are tried.
const (
	StrategyV3Arguments = "v3-arguments"
	StrategyV3Input     = "v3-input"
	StrategyV2Actions   = "v2-actions"
)

// shapeHints are fragments of 400/422 messages that mean the request body
// did not match the endpoint, rather than the tool rejecting its arguments.
var shapeHints = []string{
	"unknown field",
	"unrecognized",
	"unrecognised",
	"unexpected field",
	"extra fields not permitted",
	"additional properties",
	"is not allowed",
}

// routeHints are fragments of 404 messages that mean the endpoint itself
// does not exist on this platform version.
var routeHints = []string{
	"route",
	"endpoint",
	"cannot post",
	"no handler",
	"unknown path",
	"unknown action",
}

// Platform exposes the platform's execute endpoints as call strategies.
type Platform struct {
	client     *Client
	downloads  *Downloader
	strategies []driven.CallStrategy
}

// Option configures a Platform.
type Option func(*Platform)

// WithDownloader fetches files the platform returns by URL into a local
// directory and adds their path to the payload.
func WithDownloader(d *Downloader) Option {
	return func(p *Platform) { p.downloads = d }
}

// NewPlatform creates the REST tool platform.
func NewPlatform(client *Client, opts ...Option) *Platform {
	p := &Platform{client: client}
	for _, opt := range opts {
		opt(p)
	}

	p.strategies = []driven.CallStrategy{
		&executeStrategy{
			name:     StrategyV3Arguments,
			platform: p,
			path:     func(slug string) string { return "/api/v3/tools/execute/" + url.PathEscape(slug) },
			body: func(call domain.ToolCall) any {
				return map[string]any{"user_id": call.UserID, "arguments": call.Arguments}
			},
		},
		&executeStrategy{
			name:     StrategyV3Input,
			platform: p,
			path:     func(slug string) string { return "/api/v3/tools/execute/" + url.PathEscape(slug) },
			body: func(call domain.ToolCall) any {
				return map[string]any{"user_id": call.UserID, "input": call.Arguments}
			},
		},
		&executeStrategy{
			name:     StrategyV2Actions,
			platform: p,
			path:     func(slug string) string { return "/api/v2/actions/" + url.PathEscape(slug) + "/execute" },
			body: func(call domain.ToolCall) any {
				return map[string]any{"entityId": call.UserID, "input": call.Arguments}
			},
		},
	}
	return p
}

// Name returns the platform name.
func (p *Platform) Name() string { return "rest" }

// Strategies returns the execute strategies, newest API first.
func (p *Platform) Strategies() []driven.CallStrategy { return p.strategies }

type executeStrategy struct {
	name     string
	platform *Platform
	path     func(slug string) string
	body     func(call domain.ToolCall) any
}

func (s *executeStrategy) Name() string { return s.name }

func (s *executeStrategy) Attempt(ctx context.Context, call domain.ToolCall) (domain.Value, error) {
	raw, err := s.platform.client.post(ctx, s.path(call.Operation), s.body(call))
	if err != nil {
		return domain.Null(), classify(s.name, err)
	}

	if s.platform.downloads != nil {
		raw, err = s.platform.downloads.Materialize(ctx, raw)
		if err != nil {
			return domain.Null(), &domain.IntegrationError{
				Operation:   call.Operation,
				Integration: call.Integration,
				Strategy:    s.name,
				Message:     "fetch downloaded file: " + err.Error(),
				Err:         err,
			}
		}
	}
	return raw, nil
}

// classify turns a transport failure into a shape mismatch or an
// integration error.
func classify(strategy string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var herr *HTTPError
	if !errors.As(err, &herr) {
		return &domain.IntegrationError{Strategy: strategy, Message: err.Error(), Err: err}
	}

	switch herr.StatusCode {
	case http.StatusNotFound:
		if missingRoute(herr) {
			return domain.NewShapeError(strategy, herr)
		}
		return &domain.IntegrationError{Strategy: strategy, Message: herr.Error(), Err: errors.Join(domain.ErrNotFound, herr)}
	case http.StatusMethodNotAllowed, http.StatusGone, http.StatusNotImplemented:
		return domain.NewShapeError(strategy, herr)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		msg := strings.ToLower(herr.Message + " " + herr.Body)
		for _, hint := range shapeHints {
			if strings.Contains(msg, hint) {
				return domain.NewShapeError(strategy, herr)
			}
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.IntegrationError{Strategy: strategy, Message: herr.Error(), Err: errors.Join(domain.ErrAuthInvalid, herr)}
	case http.StatusTooManyRequests:
		return &domain.IntegrationError{Strategy: strategy, Message: herr.Error(), Err: errors.Join(domain.ErrRateLimited, herr)}
	}
	return &domain.IntegrationError{Strategy: strategy, Message: herr.Error(), Err: herr}
}

// missingRoute reports whether a 404 means the endpoint is absent rather
// than a resource the tool looked up. Only a JSON error naming something
// other than a route counts as a resource miss.
func missingRoute(herr *HTTPError) bool {
	v, err := domain.ParseJSON([]byte(herr.Body))
	if err != nil || v.Kind() != domain.KindMap {
		return true
	}
	msg := strings.ToLower(strings.TrimSpace(herr.Message))
	if msg == "" || msg == "not found" {
		return true
	}
	for _, hint := range routeHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
