// Package ratelimit paces calls to external APIs and backs off after the
// remote side reports rate limiting.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Service identifies an external API for rate limiting purposes.
type Service string

const (
	// ServicePlatform is the hosted tool platform.
	ServicePlatform Service = "platform"
	// ServiceDrive is the Google Drive API.
	ServiceDrive Service = "drive"
	// ServiceCalendar is the Google Calendar API.
	ServiceCalendar Service = "calendar"
	// ServiceNotion is the Notion API.
	ServiceNotion Service = "notion"
)

// Config holds rate limiting configuration for a service.
type Config struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size.
	BurstSize int
}

// DefaultLimits are conservative defaults for each service.
// Notion documents an average of three requests per second.
var DefaultLimits = map[Service]Config{
	ServicePlatform: {RequestsPerSecond: 5.0, BurstSize: 5},
	ServiceDrive:    {RequestsPerSecond: 8.0, BurstSize: 10},
	ServiceCalendar: {RequestsPerSecond: 5.0, BurstSize: 10},
	ServiceNotion:   {RequestsPerSecond: 3.0, BurstSize: 3},
}

// DefaultBackoff is used when a 429 carries no usable Retry-After.
const DefaultBackoff = 30 * time.Second

// Limiter is a token bucket with a backoff window set by rate limit errors.
type Limiter struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	retryAt time.Time
	service Service
	now     func() time.Time
}

// New creates a limiter for the specified service.
func New(service Service) *Limiter {
	cfg, ok := DefaultLimits[service]
	if !ok {
		cfg = Config{RequestsPerSecond: 5.0, BurstSize: 5}
	}
	return NewForService(service, cfg)
}

// NewForService creates a limiter for service with custom configuration.
func NewForService(service Service, cfg Config) *Limiter {
	l := NewWithConfig(cfg)
	l.service = service
	return l
}

// NewWithConfig creates a limiter with custom configuration.
// A non-positive rate disables pacing.
func NewWithConfig(cfg Config) *Limiter {
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := cfg.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Service returns the service the limiter paces.
func (l *Limiter) Service() Service {
	return l.service
}

// Wait blocks until a request can be made. It honours any backoff window
// recorded by Backoff before waiting on the token bucket.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	retryAt := l.retryAt
	now := l.now()
	l.mu.Unlock()

	if now.Before(retryAt) {
		timer := time.NewTimer(retryAt.Sub(now))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return l.limiter.Wait(ctx)
}

// Backoff delays later calls by d. Zero or negative uses DefaultBackoff.
func (l *Limiter) Backoff(d time.Duration) {
	if d <= 0 {
		d = DefaultBackoff
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if until := l.now().Add(d); until.After(l.retryAt) {
		l.retryAt = until
	}
}

// RetryAt returns the end of the current backoff window, if any.
func (l *Limiter) RetryAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retryAt
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns 0 when the header is absent or unusable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
