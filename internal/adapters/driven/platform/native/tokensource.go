package native

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// TokenSources hands out oauth2 token sources backed by cached connections.
// Expired OAuth tokens are refreshed in memory when a client config is known
// for the integration; the cache itself is never written.
type TokenSources struct {
	backend driven.ConnectionBackend
	configs map[domain.IntegrationID]*oauth2.Config

	mu      sync.Mutex
	sources map[string]oauth2.TokenSource
}

// NewTokenSources creates token sources reading from backend.
func NewTokenSources(backend driven.ConnectionBackend, configs map[domain.IntegrationID]*oauth2.Config) *TokenSources {
	if configs == nil {
		configs = make(map[domain.IntegrationID]*oauth2.Config)
	}
	return &TokenSources{
		backend: backend,
		configs: configs,
		sources: make(map[string]oauth2.TokenSource),
	}
}

// For returns the token source for an integration and user.
func (t *TokenSources) For(ctx context.Context, integration domain.IntegrationID, userID string) (oauth2.TokenSource, error) {
	key := domain.ConnectionKey(integration, userID)

	t.mu.Lock()
	defer t.mu.Unlock()
	if ts, ok := t.sources[key]; ok {
		return ts, nil
	}
	if t.backend == nil {
		return nil, domain.ErrNotImplemented
	}

	cache, err := t.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	conn, ok := cache.Get(integration, userID)
	if !ok || !conn.IsActive() || conn.AccessToken() == "" {
		return nil, fmt.Errorf("%s: %w", integration, domain.ErrAuthRequired)
	}

	var ts oauth2.TokenSource
	cfg := t.configs[integration]
	if conn.OAuth != nil && cfg != nil {
		ts = cfg.TokenSource(context.WithoutCancel(ctx), toOAuth2(conn.OAuth))
	} else {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: conn.AccessToken(), TokenType: "Bearer"})
	}
	t.sources[key] = ts
	return ts, nil
}

// Token returns a valid access token for an integration and user.
func (t *TokenSources) Token(ctx context.Context, integration domain.IntegrationID, userID string) (string, error) {
	ts, err := t.For(ctx, integration, userID)
	if err != nil {
		return "", err
	}
	tok, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("%s token: %w", integration, errorsJoinAuth(err))
	}
	return tok.AccessToken, nil
}

func toOAuth2(tok *domain.OAuthToken) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
}
