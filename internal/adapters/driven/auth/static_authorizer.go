package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure StaticAuthorizer implements the interface.
var _ driven.Authorizer = (*StaticAuthorizer)(nil)

const staticPrefix = "static:"

// StaticAuthorizer links integrations with pre-issued tokens, keyed by auth
// config reference. No consent step is involved.
type StaticAuthorizer struct {
	tokens map[string]string
}

// NewStaticAuthorizer creates an authorizer from reference to token pairs.
func NewStaticAuthorizer(tokens map[string]string) *StaticAuthorizer {
	return &StaticAuthorizer{tokens: tokens}
}

// Initiate returns a handshake without a consent URL.
func (a *StaticAuthorizer) Initiate(_ context.Context, integration domain.Integration, _ string) (*domain.Handshake, error) {
	return &domain.Handshake{Token: staticPrefix + integration.AuthConfigRef}, nil
}

// Await settles immediately: active when a token is configured, failed otherwise.
func (a *StaticAuthorizer) Await(_ context.Context, integration domain.Integration, _, token string) (*domain.AuthorizationOutcome, error) {
	ref, ok := strings.CutPrefix(token, staticPrefix)
	if !ok {
		return nil, fmt.Errorf("%s handshake: %w", integration.ID, domain.ErrHandshakeExpired)
	}

	value := strings.TrimSpace(a.tokens[ref])
	if value == "" {
		return &domain.AuthorizationOutcome{
			Status: domain.ConnectionFailed,
			Reason: ref + " is not set",
		}, nil
	}
	return &domain.AuthorizationOutcome{Status: domain.ConnectionActive, Token: value}, nil
}
