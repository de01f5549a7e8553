package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// stubStrategy implements driven.CallStrategy for testing.
type stubStrategy struct {
	name     string
	attempts int
	fn       func(call domain.ToolCall) (domain.Value, error)
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Attempt(_ context.Context, call domain.ToolCall) (domain.Value, error) {
	s.attempts++
	return s.fn(call)
}

func shapeErr(name string) func(domain.ToolCall) (domain.Value, error) {
	return func(domain.ToolCall) (domain.Value, error) {
		return domain.Null(), domain.NewShapeError(name, errors.New("unexpected keyword argument"))
	}
}

func okPayload(raw string) func(domain.ToolCall) (domain.Value, error) {
	return func(domain.ToolCall) (domain.Value, error) {
		return domain.ParseJSON([]byte(raw))
	}
}

// stubPlatform implements driven.ToolPlatform for testing.
type stubPlatform struct {
	strategies []*stubStrategy
}

func (p *stubPlatform) Name() string { return "stub" }

func (p *stubPlatform) Strategies() []driven.CallStrategy {
	out := make([]driven.CallStrategy, len(p.strategies))
	for i, s := range p.strategies {
		out[i] = s
	}
	return out
}

func attempts(p *stubPlatform) []int {
	out := make([]int, len(p.strategies))
	for i, s := range p.strategies {
		out[i] = s.attempts
	}
	return out
}

var testCall = domain.ToolCall{
	Operation:   "GOOGLEDRIVE_DOWNLOAD_FILE",
	Arguments:   domain.Args("file_id", "f1"),
	Integration: domain.IntegrationFiles,
	UserID:      "u1",
}

func TestToolInvoker_ShapeErrorsAdvance(t *testing.T) {
	platform := &stubPlatform{strategies: []*stubStrategy{
		{name: "a", fn: shapeErr("a")},
		{name: "b", fn: shapeErr("b")},
		{name: "c", fn: okPayload(`{"data": {"file_path": "/tmp/s.pdf"}, "successful": true}`)},
		{name: "d", fn: okPayload(`{}`)},
	}}
	invoker := NewToolInvoker(platform)

	res, err := invoker.Invoke(context.Background(), testCall)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "c", res.Strategy)
	path, _ := res.Payload.Get("file_path")
	assert.Equal(t, "/tmp/s.pdf", path.Text())
	assert.Equal(t, []int{1, 1, 1, 0}, attempts(platform))
}

func TestToolInvoker_NonShapeErrorStops(t *testing.T) {
	authErr := errors.New("401: connected account not found")
	platform := &stubPlatform{strategies: []*stubStrategy{
		{name: "a", fn: shapeErr("a")},
		{name: "b", fn: func(domain.ToolCall) (domain.Value, error) { return domain.Null(), authErr }},
		{name: "c", fn: okPayload(`{}`)},
		{name: "d", fn: okPayload(`{}`)},
	}}
	invoker := NewToolInvoker(platform)

	res, err := invoker.Invoke(context.Background(), testCall)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Equal(t, []int{1, 1, 0, 0}, attempts(platform), "strategies 3 and 4 are never tried")

	var ie *domain.IntegrationError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "b", ie.Strategy)
	assert.Equal(t, testCall.Operation, ie.Operation)
	assert.ErrorIs(t, err, authErr)
	assert.Contains(t, err.Error(), "401: connected account not found")
}

func TestToolInvoker_PassesIntegrationErrorThrough(t *testing.T) {
	platformErr := &domain.IntegrationError{Message: "database not shared with integration"}
	platform := &stubPlatform{strategies: []*stubStrategy{
		{name: "a", fn: func(domain.ToolCall) (domain.Value, error) { return domain.Null(), fmt.Errorf("call: %w", platformErr) }},
	}}

	_, err := NewToolInvoker(platform).Invoke(context.Background(), testCall)
	require.Error(t, err)

	var ie *domain.IntegrationError
	require.True(t, errors.As(err, &ie))
	assert.Same(t, platformErr, ie)
	assert.Equal(t, domain.IntegrationFiles, ie.Integration)
	assert.Equal(t, "a", ie.Strategy)
}

func TestToolInvoker_AllShapeErrors(t *testing.T) {
	platform := &stubPlatform{strategies: []*stubStrategy{
		{name: "a", fn: shapeErr("a")},
		{name: "b", fn: shapeErr("b")},
		{name: "c", fn: shapeErr("c")},
	}}

	_, err := NewToolInvoker(platform).Invoke(context.Background(), testCall)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoCompatibleInvocationStrategy)

	var inv *domain.InvocationError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, 3, inv.Tried)
	assert.Len(t, inv.Attempts, 3)
	assert.Contains(t, err.Error(), testCall.Operation)
}

func TestToolInvoker_RemembersWinningStrategy(t *testing.T) {
	platform := &stubPlatform{strategies: []*stubStrategy{
		{name: "a", fn: shapeErr("a")},
		{name: "b", fn: okPayload(`{"ok": true}`)},
	}}
	invoker := NewToolInvoker(platform)

	_, err := invoker.Invoke(context.Background(), testCall)
	require.NoError(t, err)
	name, ok := invoker.Preferred(domain.IntegrationFiles)
	require.True(t, ok)
	assert.Equal(t, "b", name)

	_, err = invoker.Invoke(context.Background(), testCall)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts(platform), "preferred strategy goes first")

	other := testCall
	other.Integration = domain.IntegrationCalendar
	_, err = invoker.Invoke(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, attempts(platform), "preference is per integration")
}

func TestToolInvoker_EnvelopeFailure(t *testing.T) {
	platform := &stubPlatform{strategies: []*stubStrategy{
		{name: "a", fn: okPayload(`{"data": {}, "successful": false, "error": "Could not find database with ID: db1"}`)},
	}}

	res, err := NewToolInvoker(platform).Invoke(context.Background(), testCall)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.ErrorIs(t, err, domain.ErrIntegration)
	assert.Contains(t, err.Error(), "Could not find database with ID: db1")
}

func TestToolInvoker_CancelledContext(t *testing.T) {
	platform := &stubPlatform{strategies: []*stubStrategy{{name: "a", fn: okPayload(`{}`)}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewToolInvoker(platform).Invoke(ctx, testCall)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{0}, attempts(platform))
}

func TestToolInvoker_Guards(t *testing.T) {
	_, err := NewToolInvoker(nil).Invoke(context.Background(), testCall)
	assert.ErrorIs(t, err, domain.ErrNotImplemented)

	_, err = NewToolInvoker(&stubPlatform{}).Invoke(context.Background(), testCall)
	assert.ErrorIs(t, err, domain.ErrNotImplemented)

	_, err = NewToolInvoker(&stubPlatform{}).Invoke(context.Background(), domain.ToolCall{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
