package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure ToolInvoker implements the interface.
var _ driving.ToolInvoker = (*ToolInvoker)(nil)

// ToolInvoker invokes named operations through the platform's call strategies.
//
// Strategies are tried in order. A shape mismatch advances to the next
// strategy; any other error stops immediately. The first strategy that works
// for an integration is tried first on later calls to that integration.
type ToolInvoker struct {
	platform driven.ToolPlatform

	mu        sync.Mutex
	preferred map[domain.IntegrationID]string
}

// NewToolInvoker creates an invoker for a platform.
func NewToolInvoker(platform driven.ToolPlatform) *ToolInvoker {
	return &ToolInvoker{
		platform:  platform,
		preferred: make(map[domain.IntegrationID]string),
	}
}

// Invoke runs the call and returns the normalised result.
//
// When the platform envelope reports failure the result is returned with
// Success=false together with an *domain.IntegrationError.
func (i *ToolInvoker) Invoke(ctx context.Context, call domain.ToolCall) (*domain.ToolResult, error) {
	if i.platform == nil {
		return nil, domain.ErrNotImplemented
	}
	if call.Operation == "" {
		return nil, fmt.Errorf("%w: operation name is empty", domain.ErrInvalidInput)
	}

	strategies := i.ordered(call.Integration)
	if len(strategies) == 0 {
		return nil, fmt.Errorf("invoke %s: platform %s has no call strategies: %w",
			call.Operation, i.platform.Name(), domain.ErrNotImplemented)
	}

	var shapes []error
	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("invoke %s: %w", call.Operation, err)
		}

		raw, err := strategy.Attempt(ctx, call)
		if err != nil {
			if errors.Is(err, domain.ErrShapeMismatch) {
				logger.Debug("%s: strategy %s does not fit: %v", call.Operation, strategy.Name(), err)
				shapes = append(shapes, err)
				continue
			}
			return nil, i.integrationError(call, strategy.Name(), err)
		}

		i.remember(call.Integration, strategy.Name())

		ok, message := domain.EnvelopeStatus(raw)
		result := &domain.ToolResult{
			Success:  ok,
			Payload:  domain.NormalizePayload(raw),
			Raw:      raw,
			Strategy: strategy.Name(),
		}
		if !ok {
			return result, &domain.IntegrationError{
				Operation:   call.Operation,
				Integration: call.Integration,
				Strategy:    strategy.Name(),
				Message:     message,
			}
		}
		logger.Debug("%s succeeded via %s", call.Operation, strategy.Name())
		return result, nil
	}

	return nil, &domain.InvocationError{
		Operation:   call.Operation,
		Integration: call.Integration,
		Tried:       len(strategies),
		Attempts:    shapes,
	}
}

// Preferred returns the remembered strategy for an integration, if any.
func (i *ToolInvoker) Preferred(integration domain.IntegrationID) (string, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	name, ok := i.preferred[integration]
	return name, ok
}

// ordered returns the platform strategies with the preferred one first.
func (i *ToolInvoker) ordered(integration domain.IntegrationID) []driven.CallStrategy {
	all := i.platform.Strategies()
	name, ok := i.Preferred(integration)
	if !ok {
		return all
	}

	out := make([]driven.CallStrategy, 0, len(all))
	for _, s := range all {
		if s.Name() == name {
			out = append(out, s)
		}
	}
	for _, s := range all {
		if s.Name() != name {
			out = append(out, s)
		}
	}
	return out
}

func (i *ToolInvoker) remember(integration domain.IntegrationID, strategy string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.preferred[integration] != strategy {
		logger.Debug("remembering strategy %s for %s", strategy, integration)
	}
	i.preferred[integration] = strategy
}

// integrationError passes a non-shape error through, filling in the call
// context when the platform did not.
func (i *ToolInvoker) integrationError(call domain.ToolCall, strategy string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("invoke %s: %w", call.Operation, err)
	}

	var ie *domain.IntegrationError
	if errors.As(err, &ie) {
		if ie.Operation == "" {
			ie.Operation = call.Operation
		}
		if ie.Integration == "" {
			ie.Integration = call.Integration
		}
		if ie.Strategy == "" {
			ie.Strategy = strategy
		}
		return err
	}

	return &domain.IntegrationError{
		Operation:   call.Operation,
		Integration: call.Integration,
		Strategy:    strategy,
		Message:     err.Error(),
		Err:         err,
	}
}
