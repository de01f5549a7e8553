package rest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure Authorizer implements the interface.
var _ driven.Authorizer = (*Authorizer)(nil)

// DefaultCallbackURL is where the consent page sends the user when done.
const DefaultCallbackURL = "https://www.google.com"

// DefaultPollInterval is the delay between connected account status checks.
const DefaultPollInterval = 2 * time.Second

// Authorizer links integrations through the platform's hosted consent flow.
type Authorizer struct {
	client       *Client
	callbackURL  string
	pollInterval time.Duration
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithCallbackURL sets the page shown after consent.
func WithCallbackURL(u string) AuthorizerOption {
	return func(a *Authorizer) {
		if u != "" {
			a.callbackURL = u
		}
	}
}

// WithPollInterval sets how often a pending account is checked.
func WithPollInterval(d time.Duration) AuthorizerOption {
	return func(a *Authorizer) {
		if d > 0 {
			a.pollInterval = d
		}
	}
}

// NewAuthorizer creates an authorizer using the platform client.
func NewAuthorizer(client *Client, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{
		client:       client,
		callbackURL:  DefaultCallbackURL,
		pollInterval: DefaultPollInterval,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Initiate requests a consent link for the integration's auth config.
func (a *Authorizer) Initiate(ctx context.Context, integration domain.Integration, userID string) (*domain.Handshake, error) {
	body := map[string]any{
		"auth_config_id": integration.AuthConfigRef,
		"user_id":        userID,
		"callback_url":   a.callbackURL,
	}
	resp, err := a.client.post(ctx, "/api/v3/connected_accounts/link", body)
	if err != nil {
		return nil, fmt.Errorf("request link: %w", err)
	}

	token := firstText(resp, "connected_account_id", "connectedAccountId", "id")
	if token == "" {
		return nil, fmt.Errorf("request link: %w: response has no connected account id", domain.ErrIntegration)
	}

	return &domain.Handshake{
		Token:       token,
		RedirectURL: firstText(resp, "redirect_url", "redirectUrl", "redirect_uri"),
	}, nil
}

// Await polls the connected account until it leaves the initiated state.
func (a *Authorizer) Await(ctx context.Context, integration domain.Integration, userID, token string) (*domain.AuthorizationOutcome, error) {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		outcome, err := a.check(ctx, token)
		if err != nil {
			return nil, err
		}
		if outcome.Status != domain.ConnectionPending {
			return outcome, nil
		}
		logger.Debug("connected account %s for %s still pending", token, integration.ID)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *Authorizer) check(ctx context.Context, token string) (*domain.AuthorizationOutcome, error) {
	resp, err := a.client.get(ctx, "/api/v3/connected_accounts/"+url.PathEscape(token))
	if err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("connected account %s: %w", token, domain.ErrHandshakeExpired)
		}
		return nil, fmt.Errorf("check connected account %s: %w", token, err)
	}

	status := strings.ToUpper(firstText(resp, "status"))
	switch status {
	case "ACTIVE":
		return &domain.AuthorizationOutcome{Status: domain.ConnectionActive, Token: token}, nil
	case "FAILED", "INACTIVE", "DELETED":
		reason := firstText(resp, "status_reason", "statusReason")
		if reason == "" {
			reason = "account status " + status
		}
		return &domain.AuthorizationOutcome{Status: domain.ConnectionFailed, Token: token, Reason: reason}, nil
	case "EXPIRED":
		return nil, fmt.Errorf("connected account %s: %w", token, domain.ErrHandshakeExpired)
	default:
		return &domain.AuthorizationOutcome{Status: domain.ConnectionPending, Token: token}, nil
	}
}

// firstText returns the first non-empty top-level or data-level field.
func firstText(v domain.Value, keys ...string) string {
	scopes := []domain.Value{v}
	if data, ok := v.Get("data"); ok {
		scopes = append(scopes, data)
	}
	for _, scope := range scopes {
		for _, k := range keys {
			if f, ok := scope.Get(k); ok && f.Text() != "" {
				return f.Text()
			}
		}
	}
	return ""
}
