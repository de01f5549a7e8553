package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/core/ports/driving"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// Ensure ConnectionStore implements the interface.
var _ driving.ConnectionService = (*ConnectionStore)(nil)

// DefaultLinkTimeout bounds how long GetOrCreate waits for consent.
const DefaultLinkTimeout = 5 * time.Minute

// ConnectionStore is the durable cache of per-user, per-integration links.
// All cache mutations go through a single mutex and a load-modify-save cycle
// on the backend, so the store is the only writer of its backend.
type ConnectionStore struct {
	backend    driven.ConnectionBackend
	authorizer driven.Authorizer
	presenter  driven.ConsentPresenter

	timeout          time.Duration
	configuredUserID string
	now              func() time.Time
	newID            func() string

	mu sync.Mutex
}

// ConnectionStoreOption configures a ConnectionStore.
type ConnectionStoreOption func(*ConnectionStore)

// WithLinkTimeout sets how long to wait for consent. Zero keeps the default.
func WithLinkTimeout(d time.Duration) ConnectionStoreOption {
	return func(s *ConnectionStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithConsentPresenter sets where consent URLs are shown.
func WithConsentPresenter(p driven.ConsentPresenter) ConnectionStoreOption {
	return func(s *ConnectionStore) { s.presenter = p }
}

// WithConfiguredUserID sets the user id used when the cache has none.
func WithConfiguredUserID(id string) ConnectionStoreOption {
	return func(s *ConnectionStore) { s.configuredUserID = id }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ConnectionStoreOption {
	return func(s *ConnectionStore) { s.now = now }
}

// WithIDGenerator overrides user id generation.
func WithIDGenerator(gen func() string) ConnectionStoreOption {
	return func(s *ConnectionStore) { s.newID = gen }
}

// NewConnectionStore creates a connection store.
// The authorizer may be nil, in which case only cached active connections
// can be returned.
func NewConnectionStore(
	backend driven.ConnectionBackend,
	authorizer driven.Authorizer,
	opts ...ConnectionStoreOption,
) *ConnectionStore {
	s := &ConnectionStore{
		backend:    backend,
		authorizer: authorizer,
		timeout:    DefaultLinkTimeout,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOrCreate returns the active connection for an integration and user.
//
// A cached active connection is returned without contacting the authoriser.
// A cached pending connection is resumed by awaiting its existing handshake;
// a fresh handshake is initiated only when there is none to resume or the
// authoriser reports it expired. On timeout the connection stays pending.
func (s *ConnectionStore) GetOrCreate(ctx context.Context, integration domain.Integration, userID string) (*domain.Connection, error) {
	if s.backend == nil {
		return nil, domain.ErrNotImplemented
	}
	if err := integration.Validate(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is empty", domain.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}

	conn, found := cache.Get(integration.ID, userID)
	if found && conn.IsActive() {
		logger.Debug("connection %s already active", conn.Key())
		return &conn, nil
	}

	if s.authorizer == nil {
		return nil, fmt.Errorf("link %s: %w", integration.ID, domain.ErrAuthRequired)
	}

	if found && conn.Status == domain.ConnectionPending && conn.Token != "" {
		logger.Info("Resuming pending link for %s", integration.ID.DisplayName())
		outcome, err := s.await(ctx, integration, userID, conn.Token)
		switch {
		case err == nil:
			return s.settle(ctx, conn, outcome)
		case errors.Is(err, domain.ErrHandshakeExpired):
			logger.Info("Pending link for %s expired, starting a new one", integration.ID.DisplayName())
		default:
			return nil, err
		}
	}

	if !found {
		conn = domain.Connection{
			IntegrationID: integration.ID,
			UserID:        userID,
			CreatedAt:     s.now(),
		}
	}

	handshake, err := s.authorizer.Initiate(ctx, integration, userID)
	if err != nil {
		return nil, fmt.Errorf("initiate link for %s: %w", integration.ID, err)
	}

	conn.Token = handshake.Token
	conn.RedirectURL = handshake.RedirectURL
	conn.Status = domain.ConnectionPending
	conn.UpdatedAt = s.now()
	if err := s.put(ctx, conn); err != nil {
		return nil, err
	}

	s.present(ctx, integration, handshake.RedirectURL)

	outcome, err := s.await(ctx, integration, userID, conn.Token)
	if err != nil {
		return nil, err
	}
	return s.settle(ctx, conn, outcome)
}

// await waits for the handshake within the link timeout.
func (s *ConnectionStore) await(ctx context.Context, integration domain.Integration, userID, token string) (*domain.AuthorizationOutcome, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	outcome, err := s.authorizer.Await(waitCtx, integration, userID, token)
	if err == nil && outcome != nil && outcome.Status != domain.ConnectionPending {
		return outcome, nil
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("link %s: %w", integration.ID, ctx.Err())
	}
	if errors.Is(err, domain.ErrHandshakeExpired) {
		return nil, err
	}
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return nil, fmt.Errorf("await link for %s: %w", integration.ID, err)
	}
	return nil, &domain.AuthorizationTimeoutError{
		Integration: integration.ID,
		UserID:      userID,
		Timeout:     s.timeout,
	}
}

// settle records the final status of a handshake. The status write is the
// last write of the handshake.
func (s *ConnectionStore) settle(ctx context.Context, conn domain.Connection, outcome *domain.AuthorizationOutcome) (*domain.Connection, error) {
	conn.UpdatedAt = s.now()

	if outcome.Status != domain.ConnectionActive {
		conn.Status = domain.ConnectionFailed
		if err := s.put(ctx, conn); err != nil {
			return nil, err
		}
		reason := outcome.Reason
		if reason == "" {
			reason = "rejected by authoriser"
		}
		return nil, fmt.Errorf("%w: %s: %s", domain.ErrAuthorizationFailed, conn.IntegrationID, reason)
	}

	if outcome.Token != "" {
		conn.Token = outcome.Token
	}
	if outcome.OAuth != nil {
		conn.OAuth = outcome.OAuth
	}
	conn.RedirectURL = ""
	conn.Status = domain.ConnectionActive
	if err := s.put(ctx, conn); err != nil {
		return nil, err
	}

	logger.Info("Linked %s", conn.IntegrationID.DisplayName())
	return &conn, nil
}

func (s *ConnectionStore) present(ctx context.Context, integration domain.Integration, url string) {
	if url == "" {
		return
	}
	if s.presenter == nil {
		logger.Info("Open this URL to authorise %s: %s", integration.ID.DisplayName(), url)
		return
	}
	if err := s.presenter.PresentConsent(ctx, integration, url); err != nil {
		logger.Warn("Failed to present consent URL for %s: %v", integration.ID, err)
	}
}

// put writes one connection into the durable cache.
func (s *ConnectionStore) put(ctx context.Context, conn domain.Connection) error {
	cache, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}
	cache.Put(conn)
	if err := s.backend.Save(ctx, cache); err != nil {
		return fmt.Errorf("save connection %s: %w", conn.Key(), err)
	}
	logger.Debug("connection %s is now %s", conn.Key(), conn.Status)
	return nil
}

// UserID returns the stable local user identifier: the cached one, else the
// configured one, else a new UUID. The chosen id is persisted.
func (s *ConnectionStore) UserID(ctx context.Context) (string, error) {
	if s.backend == nil {
		return "", domain.ErrNotImplemented
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.backend.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("load connections: %w", err)
	}
	if cache.UserID != "" {
		return cache.UserID, nil
	}

	cache.UserID = s.configuredUserID
	if cache.UserID == "" {
		cache.UserID = s.newID()
	}
	if err := s.backend.Save(ctx, cache); err != nil {
		return "", fmt.Errorf("save user id: %w", err)
	}
	logger.Debug("using user id %s", cache.UserID)
	return cache.UserID, nil
}

// List returns every cached connection ordered by key.
func (s *ConnectionStore) List(ctx context.Context) ([]domain.Connection, error) {
	if s.backend == nil {
		return nil, domain.ErrNotImplemented
	}
	cache, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load connections: %w", err)
	}
	return cache.List(), nil
}

// Reset forgets connections for one integration (every user), or all
// connections when integration is empty. The user id is kept.
func (s *ConnectionStore) Reset(ctx context.Context, integration domain.IntegrationID) error {
	if s.backend == nil {
		return domain.ErrNotImplemented
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.backend.Load(ctx)
	if err != nil {
		return fmt.Errorf("load connections: %w", err)
	}

	removed := 0
	for _, conn := range cache.List() {
		if integration == "" || conn.IntegrationID == integration {
			cache.Delete(conn.IntegrationID, conn.UserID)
			removed++
		}
	}
	if removed == 0 && integration != "" {
		return fmt.Errorf("reset %s: %w", integration, domain.ErrNotFound)
	}

	if err := s.backend.Save(ctx, cache); err != nil {
		return fmt.Errorf("save connections: %w", err)
	}
	logger.Info("Removed %d connection(s)", removed)
	return nil
}
