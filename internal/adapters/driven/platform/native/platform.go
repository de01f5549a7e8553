package native

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/api/option"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/ratelimit"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure Platform implements the interface.
var _ driven.ToolPlatform = (*Platform)(nil)

// StrategyName is the only call strategy of the native platform.
const StrategyName = "native"

type handler func(ctx context.Context, call domain.ToolCall, args domain.Value) (domain.Value, error)

// Platform calls the provider APIs directly.
type Platform struct {
	tokens      *TokenSources
	downloadDir string

	googleOpts   []option.ClientOption
	notionClient *http.Client

	limiters map[ratelimit.Service]*ratelimit.Limiter
	handlers map[string]handler
}

// Option configures a Platform.
type Option func(*Platform)

// WithGoogleOptions adds client options to every Google API service.
func WithGoogleOptions(opts ...option.ClientOption) Option {
	return func(p *Platform) { p.googleOpts = append(p.googleOpts, opts...) }
}

// WithNotionHTTPClient sets the HTTP client used for Notion requests.
func WithNotionHTTPClient(c *http.Client) Option {
	return func(p *Platform) { p.notionClient = c }
}

// WithLimiter replaces the rate limiter for one service.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(p *Platform) { p.limiters[l.Service()] = l }
}

// NewPlatform creates a native platform. Downloads are written to downloadDir.
func NewPlatform(tokens *TokenSources, downloadDir string, opts ...Option) *Platform {
	p := &Platform{
		tokens:      tokens,
		downloadDir: downloadDir,
		limiters: map[ratelimit.Service]*ratelimit.Limiter{
			ratelimit.ServiceDrive:    ratelimit.New(ratelimit.ServiceDrive),
			ratelimit.ServiceCalendar: ratelimit.New(ratelimit.ServiceCalendar),
			ratelimit.ServiceNotion:   ratelimit.New(ratelimit.ServiceNotion),
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	ops := DefaultOperationNames()
	p.handlers = map[string]handler{
		ops.FindFile:     p.findFile,
		ops.DownloadFile: p.downloadFile,
		ops.InsertRow:    p.insertRow,
		ops.CreateEvent:  p.createEvent,
	}
	return p
}

// OperationNames lists the operations the native platform understands.
type OperationNames struct {
	FindFile     string
	DownloadFile string
	InsertRow    string
	CreateEvent  string
}

// DefaultOperationNames matches the hosted platform's operation names so the
// pipeline can switch platforms without reconfiguration.
func DefaultOperationNames() OperationNames {
	return OperationNames{
		FindFile:     "GOOGLEDRIVE_FIND_FILE",
		DownloadFile: "GOOGLEDRIVE_DOWNLOAD_FILE",
		InsertRow:    "NOTION_INSERT_ROW_DATABASE",
		CreateEvent:  "GOOGLECALENDAR_CREATE_EVENT",
	}
}

// Name returns the platform name.
func (p *Platform) Name() string { return "native" }

// Strategies returns the single dispatching strategy.
func (p *Platform) Strategies() []driven.CallStrategy {
	return []driven.CallStrategy{&dispatchStrategy{platform: p}}
}

type dispatchStrategy struct {
	platform *Platform
}

func (s *dispatchStrategy) Name() string { return StrategyName }

func (s *dispatchStrategy) Attempt(ctx context.Context, call domain.ToolCall) (domain.Value, error) {
	h, ok := s.platform.handlers[call.Operation]
	if !ok {
		return domain.Null(), domain.NewShapeError(StrategyName, fmt.Errorf("operation %s is not supported natively", call.Operation))
	}
	return h(ctx, call, domain.FromAny(call.Arguments))
}

// wait paces a request to service.
func (p *Platform) wait(ctx context.Context, service ratelimit.Service) error {
	if l := p.limiters[service]; l != nil {
		return l.Wait(ctx)
	}
	return nil
}

// observe backs the service off after a rate limit response.
func (p *Platform) observe(service ratelimit.Service, err error) {
	if err == nil || statusCode(err) != http.StatusTooManyRequests {
		return
	}
	if l := p.limiters[service]; l != nil {
		l.Backoff(0)
	}
}

func argText(args domain.Value, keys ...string) string {
	for _, k := range keys {
		if v, ok := args.Get(k); ok && v.Text() != "" {
			return v.Text()
		}
	}
	return ""
}

func argNumber(args domain.Value, key string) float64 {
	if v, ok := args.Get(key); ok {
		if n, isNum := v.AsNumber(); isNum {
			return n
		}
	}
	return 0
}

func missingArg(call domain.ToolCall, name string) error {
	return &domain.IntegrationError{
		Operation:   call.Operation,
		Integration: call.Integration,
		Strategy:    StrategyName,
		Message:     "missing argument " + name,
		Err:         domain.ErrInvalidInput,
	}
}
