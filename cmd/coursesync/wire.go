package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/auth"
	"github.com/custodia-labs/coursesync/internal/adapters/driven/config/file"
	mcpplatform "github.com/custodia-labs/coursesync/internal/adapters/driven/platform/mcp"
	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/native"
	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/rest"
	filestore "github.com/custodia-labs/coursesync/internal/adapters/driven/storage/file"
	"github.com/custodia-labs/coursesync/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/coursesync/internal/adapters/driven/watch"
	"github.com/custodia-labs/coursesync/internal/adapters/driving/cli"
	"github.com/custodia-labs/coursesync/internal/config"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/core/services"
	"github.com/custodia-labs/coursesync/internal/extractors/pdf"
	"github.com/custodia-labs/coursesync/internal/extractors/plaintext"
	"github.com/custodia-labs/coursesync/internal/logger"
)

// setup loads configuration and wires the services for a command.
func setup(_ context.Context, opts cli.Options) (*cli.Services, error) {
	settings, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("opening settings: %w", err)
	}

	cfg, err := config.Load(settings, time.Now())
	if err != nil {
		return nil, err
	}
	if opts.LogFormat == "" {
		if err := logger.SetFormat(cfg.LogFormat); err != nil {
			return nil, err
		}
	}

	return build(cfg, os.Stderr)
}

// build wires every service from cfg. Consent prompts go to consentOut.
// Missing credentials do not fail the build: commands that never reach the
// platform still work, and the others fail with the configuration error.
func build(cfg config.Config, consentOut io.Writer) (*cli.Services, error) {
	var closers []func() error
	closeAll := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	backend, closeBackend, err := newBackend(cfg)
	if err != nil {
		return nil, err
	}
	if closeBackend != nil {
		closers = append(closers, closeBackend)
	}

	platform, closePlatform, err := newPlatform(cfg, backend)
	if err != nil {
		closeAll() //nolint:errcheck
		return nil, err
	}
	if closePlatform != nil {
		closers = append(closers, closePlatform)
	}

	authorizer, closeAuthorizer := newAuthorizer(cfg)
	if closeAuthorizer != nil {
		closers = append(closers, closeAuthorizer)
	}

	schedule, err := cfg.Schedule()
	if err != nil {
		closeAll() //nolint:errcheck
		return nil, err
	}

	connections := services.NewConnectionStore(backend, authorizer,
		services.WithLinkTimeout(cfg.LinkTimeout),
		services.WithConsentPresenter(cli.NewConsentPrompt(consentOut)),
		services.WithConfiguredUserID(cfg.UserID),
	)
	invoker := services.NewToolInvoker(platform)
	locator := services.NewArtifactLocator(
		services.WithSelectionPolicy(cfg.SelectionPolicy()),
		services.WithPreferredName(cfg.FileName),
		services.WithSettleWindow(cfg.DownloadSettle, watch.New()),
	)
	extractor := services.NewLessonExtractor(
		[]driven.TextExtractor{pdf.NewWithTool(cfg.PDFToText), plaintext.New()},
		services.WithMaxLessons(cfg.MaxLessons),
		services.WithChunkFallback(cfg.ExtractFallback),
	)

	files, database, calendar := cfg.Integrations()
	pipeline := services.NewPipeline(connections, invoker, locator, extractor, services.PipelineConfig{
		Files:               files,
		Database:            database,
		Calendar:            calendar,
		LinkAttempts:        cfg.LinkAttempts,
		FileName:            cfg.FileName,
		FileID:              cfg.FileID,
		Extension:           artifactExtension(cfg.FileName),
		DownloadDir:         cfg.DownloadDir,
		DatabaseID:          cfg.DatabaseID,
		TitleProperty:       cfg.TitleProperty,
		DescriptionProperty: cfg.DescriptionProperty,
		CalendarID:          cfg.CalendarID,
		Schedule:            schedule,
		CallInterval:        cfg.CallInterval,
	})

	logger.Debug("Wired %s platform with %s auth and %s connection cache", platform.Name(), cfg.AuthMode, cfg.ConnectionsBackend)

	return &cli.Services{
		Connections: connections,
		Pipeline:    pipeline,
		Extractor:   extractor,
		Locator:     locator,
		DownloadDir: cfg.DownloadDir,
		Close:       closeAll,
	}, nil
}

func newBackend(cfg config.Config) (driven.ConnectionBackend, func() error, error) {
	if cfg.ConnectionsBackend == config.BackendSQLite {
		store, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, nil, fmt.Errorf("opening connection database: %w", err)
		}
		return store, store.Close, nil
	}
	backend, err := filestore.NewConnectionBackend(cfg.ConnectionsFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening connections file: %w", err)
	}
	return backend, nil, nil
}

func newPlatform(cfg config.Config, backend driven.ConnectionBackend) (driven.ToolPlatform, func() error, error) {
	if err := cfg.RequirePlatform(); err != nil {
		return unconfiguredPlatform{name: cfg.Platform, err: err}, nil, nil
	}

	switch cfg.Platform {
	case config.PlatformMCP:
		transport, err := mcpTransport(cfg)
		if err != nil {
			return nil, nil, err
		}
		p := mcpplatform.NewPlatform(transport, mcpplatform.WithExecuteTool(cfg.MCPExecuteTool))
		return p, p.Close, nil

	case config.PlatformNative:
		tokens := native.NewTokenSources(backend, oauthConfigs(cfg))
		return native.NewPlatform(tokens, cfg.DownloadDir), nil, nil

	default:
		client, err := rest.NewClient(rest.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey})
		if err != nil {
			return nil, nil, err
		}
		downloads := rest.NewDownloader(cfg.DownloadDir, nil)
		return rest.NewPlatform(client, rest.WithDownloader(downloads)), nil, nil
	}
}

// mcpTransport prefers the HTTP endpoint over spawning a local server.
func mcpTransport(cfg config.Config) (sdkmcp.Transport, error) {
	if cfg.MCPURL != "" {
		return mcpplatform.HTTPTransport(cfg.MCPURL, cfg.APIKey), nil
	}
	return mcpplatform.CommandTransport(cfg.MCPCommand)
}

func newAuthorizer(cfg config.Config) (driven.Authorizer, func() error) {
	if err := cfg.RequireAuth(); err != nil {
		return unconfiguredAuthorizer{err: err}, nil
	}

	switch cfg.AuthMode {
	case config.AuthOAuth:
		a := auth.NewOAuthAuthorizer(oauthProviders(cfg), cfg.CallbackPort)
		return a, a.Close

	case config.AuthStatic:
		return auth.NewStaticAuthorizer(map[string]string{
			"GOOGLE_TOKEN": cfg.GoogleToken,
			"NOTION_TOKEN": cfg.NotionToken,
		}), nil

	default:
		client, err := rest.NewClient(rest.Config{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey})
		if err != nil {
			return unconfiguredAuthorizer{err: err}, nil
		}
		return rest.NewAuthorizer(client), nil
	}
}

func oauthProviders(cfg config.Config) map[string]auth.Provider {
	return map[string]auth.Provider{
		auth.ProviderGoogle: auth.GoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret),
		auth.ProviderNotion: auth.NotionProvider(cfg.NotionClientID, cfg.NotionClientSecret),
	}
}

// oauthConfigs maps integrations to the OAuth configs used to refresh their
// tokens. Static tokens are never refreshed.
func oauthConfigs(cfg config.Config) map[domain.IntegrationID]*oauth2.Config {
	if cfg.AuthMode != config.AuthOAuth {
		return nil
	}
	providers := oauthProviders(cfg)
	google, notion := providers[auth.ProviderGoogle], providers[auth.ProviderNotion]
	return map[domain.IntegrationID]*oauth2.Config{
		domain.IntegrationFiles:    google.Config,
		domain.IntegrationCalendar: google.Config,
		domain.IntegrationDatabase: notion.Config,
	}
}

// unconfiguredPlatform fails every call with the configuration error.
type unconfiguredPlatform struct {
	name string
	err  error
}

func (p unconfiguredPlatform) Name() string { return p.name }

func (p unconfiguredPlatform) Strategies() []driven.CallStrategy {
	return []driven.CallStrategy{p}
}

func (p unconfiguredPlatform) Attempt(context.Context, domain.ToolCall) (domain.Value, error) {
	return domain.Null(), p.err
}

// unconfiguredAuthorizer fails every handshake with the configuration error.
type unconfiguredAuthorizer struct {
	err error
}

func (a unconfiguredAuthorizer) Initiate(context.Context, domain.Integration, string) (*domain.Handshake, error) {
	return nil, a.err
}

func (a unconfiguredAuthorizer) Await(context.Context, domain.Integration, string, string) (*domain.AuthorizationOutcome, error) {
	return nil, a.err
}

// artifactExtension is the extension the downloaded document is located by,
// taken from the configured file name.
func artifactExtension(fileName string) string {
	if ext := filepath.Ext(fileName); ext != "" {
		return ext
	}
	return ".pdf"
}
