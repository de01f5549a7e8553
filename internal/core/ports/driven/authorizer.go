package driven

import (
	"context"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// Authorizer runs the external consent handshake that links an integration.
type Authorizer interface {
	// Initiate starts a handshake and returns its token and consent URL.
	Initiate(ctx context.Context, integration domain.Integration, userID string) (*domain.Handshake, error)

	// Await blocks until the handshake identified by token settles or ctx is done.
	// Returns domain.ErrHandshakeExpired if the authoriser no longer knows the token.
	Await(ctx context.Context, integration domain.Integration, userID, token string) (*domain.AuthorizationOutcome, error)
}

// ConsentPresenter shows the operator where to complete consent.
type ConsentPresenter interface {
	// PresentConsent displays (or opens) the consent URL for an integration.
	PresentConsent(ctx context.Context, integration domain.Integration, url string) error
}
