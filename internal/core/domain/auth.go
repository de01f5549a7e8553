package domain

import "time"

// OAuthToken represents stored OAuth credentials.
type OAuthToken struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`
}

// IsExpired returns true if the token has expired.
func (t *OAuthToken) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}

// Handshake is the pending half of an authorisation flow.
// Token identifies the handshake with the authoriser; RedirectURL is where
// the operator completes consent.
type Handshake struct {
	Token       string
	RedirectURL string
}

// AuthorizationOutcome is what an authoriser reports once a handshake settles.
type AuthorizationOutcome struct {
	// Status is active or failed.
	Status ConnectionStatus
	// Token replaces the handshake token when the platform issues a new one.
	Token string
	// OAuth carries tokens for flows that issue them directly.
	OAuth *OAuthToken
	// Reason explains a failed outcome.
	Reason string
}
