package domain

import (
	"fmt"
	"sort"
	"time"
)

// ConnectionStatus is the lifecycle state of a Connection.
type ConnectionStatus string

const (
	// ConnectionPending means a handshake was initiated but consent is not complete.
	ConnectionPending ConnectionStatus = "pending"
	// ConnectionActive means the integration is linked and usable.
	ConnectionActive ConnectionStatus = "active"
	// ConnectionFailed means the last handshake was rejected or expired.
	ConnectionFailed ConnectionStatus = "failed"
)

// IsValid reports whether the status is one of the known values.
func (s ConnectionStatus) IsValid() bool {
	switch s {
	case ConnectionPending, ConnectionActive, ConnectionFailed:
		return true
	default:
		return false
	}
}

// Connection is the authorised link between a local user and one integration.
type Connection struct {
	// IntegrationID is the linked integration.
	IntegrationID IntegrationID `json:"integration_id"`
	// UserID is the local user identity.
	UserID string `json:"user_id"`
	// Token identifies the connection with the platform.
	// While pending it is the handshake token.
	Token string `json:"connection_token"`
	// Status is the lifecycle state.
	Status ConnectionStatus `json:"status"`
	// RedirectURL is the consent URL of a pending handshake.
	RedirectURL string `json:"redirect_url,omitempty"`
	// OAuth holds tokens issued directly to this process (native OAuth flow).
	OAuth *OAuthToken `json:"oauth,omitempty"`
	// CreatedAt is when the first link attempt was made.
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is when the status last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// ConnectionKey builds the cache key for an integration and user.
func ConnectionKey(integration IntegrationID, userID string) string {
	return fmt.Sprintf("%s:%s", integration, userID)
}

// Key returns the cache key of the connection.
func (c Connection) Key() string {
	return ConnectionKey(c.IntegrationID, c.UserID)
}

// IsActive returns true if the connection is linked.
func (c Connection) IsActive() bool {
	return c.Status == ConnectionActive
}

// AccessToken returns the token callers should present to the integration.
func (c Connection) AccessToken() string {
	if c.OAuth != nil && c.OAuth.AccessToken != "" {
		return c.OAuth.AccessToken
	}
	return c.Token
}

// ConnectionCache is the durable state persisted by a ConnectionBackend.
// Connections are keyed by ConnectionKey, so a user has at most one
// connection (and therefore at most one active connection) per integration.
type ConnectionCache struct {
	// UserID is the stable local user identity.
	UserID string `json:"user_id,omitempty"`
	// Connections maps "{integration}:{user}" to the connection record.
	Connections map[string]Connection `json:"connections"`
}

// NewConnectionCache returns an empty cache.
func NewConnectionCache() ConnectionCache {
	return ConnectionCache{Connections: make(map[string]Connection)}
}

// Get returns the connection for an integration and user.
func (c ConnectionCache) Get(integration IntegrationID, userID string) (Connection, bool) {
	conn, ok := c.Connections[ConnectionKey(integration, userID)]
	return conn, ok
}

// Put stores a connection, replacing any previous one for the same key.
func (c *ConnectionCache) Put(conn Connection) {
	if c.Connections == nil {
		c.Connections = make(map[string]Connection)
	}
	c.Connections[conn.Key()] = conn
}

// Delete removes the connection for an integration and user.
func (c *ConnectionCache) Delete(integration IntegrationID, userID string) bool {
	key := ConnectionKey(integration, userID)
	if _, ok := c.Connections[key]; !ok {
		return false
	}
	delete(c.Connections, key)
	return true
}

// List returns all connections ordered by key.
func (c ConnectionCache) List() []Connection {
	keys := make([]string, 0, len(c.Connections))
	for k := range c.Connections {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Connection, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.Connections[k])
	}
	return out
}

// Clone returns a deep copy of the cache.
func (c ConnectionCache) Clone() ConnectionCache {
	out := ConnectionCache{UserID: c.UserID, Connections: make(map[string]Connection, len(c.Connections))}
	for k, v := range c.Connections {
		if v.OAuth != nil {
			tok := *v.OAuth
			v.OAuth = &tok
		}
		out.Connections[k] = v
	}
	return out
}
