package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/coursesync/internal/adapters/driving/oauth"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure OAuthAuthorizer implements the interface.
var _ driven.Authorizer = (*OAuthAuthorizer)(nil)

// OAuthAuthorizer runs an authorization code flow with PKCE, receiving the
// redirect on a loopback callback server.
//
// Handshakes live in memory only, so a pending connection left by an earlier
// process is reported as expired and started again.
type OAuthAuthorizer struct {
	providers map[string]Provider
	port      int

	mu      sync.Mutex
	pending map[string]*handshake
}

type handshake struct {
	server   *oauth.CallbackServer
	config   oauth2.Config
	verifier string
}

// NewOAuthAuthorizer creates an authorizer for the given providers, keyed by
// auth config reference. Port 0 picks a free port per handshake.
func NewOAuthAuthorizer(providers map[string]Provider, port int) *OAuthAuthorizer {
	return &OAuthAuthorizer{
		providers: providers,
		port:      port,
		pending:   make(map[string]*handshake),
	}
}

// Initiate starts a callback server and returns the provider consent URL.
func (a *OAuthAuthorizer) Initiate(_ context.Context, integration domain.Integration, _ string) (*domain.Handshake, error) {
	provider, ok := a.providers[integration.AuthConfigRef]
	if !ok || provider.Config == nil || provider.Config.ClientID == "" {
		return nil, fmt.Errorf("%w: no OAuth client configured for %s", domain.ErrAuthRequired, integration.AuthConfigRef)
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}

	server := oauth.NewCallbackServer(a.port, state)
	if err := server.Start(); err != nil {
		return nil, err
	}

	cfg := *provider.Config
	cfg.RedirectURL = server.RedirectURI()
	verifier := oauth2.GenerateVerifier()

	opts := append([]oauth2.AuthCodeOption{oauth2.S256ChallengeOption(verifier)}, provider.AuthParams...)
	consent := cfg.AuthCodeURL(state, opts...)

	a.mu.Lock()
	a.pending[state] = &handshake{server: server, config: cfg, verifier: verifier}
	a.mu.Unlock()

	logger.Debug("waiting for %s consent on %s", integration.ID, cfg.RedirectURL)
	return &domain.Handshake{Token: state, RedirectURL: consent}, nil
}

// Await waits for the redirect and exchanges the code for a token.
// When ctx ends first the handshake stays open so it can be awaited again.
func (a *OAuthAuthorizer) Await(ctx context.Context, integration domain.Integration, _, token string) (*domain.AuthorizationOutcome, error) {
	a.mu.Lock()
	hs, ok := a.pending[token]
	a.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%s handshake: %w", integration.ID, domain.ErrHandshakeExpired)
	}

	code, err := hs.server.WaitForCode(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		a.finish(token)
		return &domain.AuthorizationOutcome{Status: domain.ConnectionFailed, Reason: err.Error()}, nil
	}
	defer a.finish(token)

	tok, err := hs.config.Exchange(ctx, code, oauth2.VerifierOption(hs.verifier))
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			return &domain.AuthorizationOutcome{Status: domain.ConnectionFailed, Reason: rerr.Error()}, nil
		}
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	return &domain.AuthorizationOutcome{
		Status: domain.ConnectionActive,
		OAuth: &domain.OAuthToken{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			TokenType:    tok.TokenType,
			Expiry:       tok.Expiry,
		},
	}, nil
}

// Close stops every open callback server.
func (a *OAuthAuthorizer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var errs []error
	for state, hs := range a.pending {
		errs = append(errs, hs.server.Stop())
		delete(a.pending, state)
	}
	return errors.Join(errs...)
}

func (a *OAuthAuthorizer) finish(token string) {
	a.mu.Lock()
	hs, ok := a.pending[token]
	delete(a.pending, token)
	a.mu.Unlock()

	if ok {
		if err := hs.server.Stop(); err != nil {
			logger.Warn("stop callback server: %v", err)
		}
	}
}
