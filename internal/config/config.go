// Package config loads and validates coursesync configuration.
//
// Values come from the process environment first, then from the TOML
// settings file. A .env file in the working directory is folded into the
// environment by LoadDotEnv before Load runs.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Platform kinds.
const (
	PlatformREST   = "rest"
	PlatformMCP    = "mcp"
	PlatformNative = "native"
)

// Auth modes.
const (
	AuthPlatform = "platform"
	AuthOAuth    = "oauth"
	AuthStatic   = "static"
)

// Connection backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Tool platform settings.
	Platform       string
	APIKey         string
	BaseURL        string
	MCPURL         string
	MCPCommand     string
	MCPExecuteTool string

	// Authorisation settings.
	AuthMode           string
	FilesAuthConfig    string
	DatabaseAuthConfig string
	CalendarAuthConfig string
	GoogleClientID     string
	GoogleClientSecret string
	NotionClientID     string
	NotionClientSecret string
	NotionToken        string
	GoogleToken        string
	CallbackPort       int

	// Connection cache settings.
	UserID             string
	ConnectionsFile    string
	ConnectionsBackend string
	DataDir            string
	LinkTimeout        time.Duration
	LinkAttempts       int

	// Document settings.
	DownloadDir    string
	DownloadSettle time.Duration
	ArtifactPolicy string
	FileName       string
	FileID         string

	// Downstream settings.
	DatabaseID          string
	TitleProperty       string
	DescriptionProperty string
	CalendarID          string

	// Schedule settings.
	StartDate     string
	StartTime     string
	Timezone      string
	IntervalDays  int
	EventDuration time.Duration

	// Extraction settings.
	MaxLessons      int
	ExtractFallback bool
	PDFToText       string

	// Operational settings.
	CallInterval time.Duration
	LogFormat    string
}

// LoadDotEnv folds .env files into the process environment. Variables that
// are already set win. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from the environment and settings store.
// settings may be nil. now supplies the default start date.
func Load(settings driven.ConfigStore, now time.Time) (Config, error) {
	r := &resolver{settings: settings, lookup: os.LookupEnv}
	return r.load(now)
}

type resolver struct {
	settings driven.ConfigStore
	lookup   func(string) (string, bool)
	errs     []error
}

func (r *resolver) load(now time.Time) (Config, error) {
	cfg := Config{
		Platform:       strings.ToLower(r.str("platform.kind", PlatformREST, "PLATFORM")),
		APIKey:         r.str("platform.api_key", "", "PLATFORM_API_KEY", "COMPOSIO_API_KEY"),
		BaseURL:        r.str("platform.base_url", "https://backend.composio.dev", "PLATFORM_BASE_URL"),
		MCPURL:         r.str("mcp.url", "", "MCP_SERVER_URL"),
		MCPCommand:     r.str("mcp.command", "", "MCP_SERVER_COMMAND"),
		MCPExecuteTool: r.str("mcp.execute_tool", "COMPOSIO_EXECUTE_TOOL", "MCP_EXECUTE_TOOL"),

		AuthMode:           strings.ToLower(r.str("auth.mode", AuthPlatform, "AUTH_MODE")),
		FilesAuthConfig:    r.str("integrations.files.auth_config", "", "GOOGLE_DRIVE_AUTH_CONFIG_ID"),
		DatabaseAuthConfig: r.str("integrations.database.auth_config", "", "NOTION_AUTH_CONFIG_ID"),
		CalendarAuthConfig: r.str("integrations.calendar.auth_config", "", "GOOGLE_CAL_AUTH_CONFIG_ID"),
		GoogleClientID:     r.str("oauth.google.client_id", "", "GOOGLE_CLIENT_ID"),
		GoogleClientSecret: r.str("oauth.google.client_secret", "", "GOOGLE_CLIENT_SECRET"),
		NotionClientID:     r.str("oauth.notion.client_id", "", "NOTION_CLIENT_ID"),
		NotionClientSecret: r.str("oauth.notion.client_secret", "", "NOTION_CLIENT_SECRET"),
		NotionToken:        r.str("static.notion_token", "", "NOTION_TOKEN"),
		GoogleToken:        r.str("static.google_token", "", "GOOGLE_TOKEN"),
		CallbackPort:       r.num("oauth.callback_port", 0, "OAUTH_CALLBACK_PORT"),

		UserID:             r.str("user.id", "", "COMPOSIO_USER_ID", "USER_ID"),
		ConnectionsFile:    r.str("connections.file", "connections.json", "CONNECTIONS_FILE"),
		ConnectionsBackend: strings.ToLower(r.str("connections.backend", BackendFile, "CONNECTIONS_BACKEND")),
		DataDir:            r.str("connections.data_dir", "", "DATA_DIR"),
		LinkTimeout:        r.duration("link.timeout", 5*time.Minute, "LINK_TIMEOUT"),
		LinkAttempts:       r.num("link.attempts", 1, "LINK_ATTEMPTS"),

		DownloadDir:    r.str("download.dir", "./downloads", "DOWNLOAD_DIR"),
		DownloadSettle: r.duration("download.settle", 0, "DOWNLOAD_SETTLE"),
		ArtifactPolicy: r.str("download.policy", string(domain.SelectNewest), "ARTIFACT_POLICY"),
		FileName:       r.str("source.file_name", "syllabus.pdf", "SYLLABUS_FILE_NAME"),
		FileID:         r.str("source.file_id", "", "SYLLABUS_FILE_ID"),

		DatabaseID:          r.str("database.id", "", "NOTION_DATABASE_ID"),
		TitleProperty:       r.str("database.title_property", "Name", "NOTION_TITLE_PROPERTY"),
		DescriptionProperty: r.str("database.description_property", "Description", "NOTION_DESCRIPTION_PROPERTY"),
		CalendarID:          r.str("calendar.id", "primary", "CALENDAR_ID"),

		StartTime:     r.str("schedule.start_time", "09:00", "START_TIME"),
		Timezone:      r.str("schedule.timezone", "UTC", "TIMEZONE"),
		IntervalDays:  r.num("schedule.interval_days", 7, "INTERVAL_DAYS"),
		EventDuration: r.duration("schedule.event_duration", time.Hour, "EVENT_DURATION"),

		MaxLessons:      r.num("extract.max_lessons", 12, "MAX_LESSONS"),
		ExtractFallback: r.flag("extract.fallback", false, "EXTRACT_FALLBACK"),
		PDFToText:       r.str("extract.pdftotext", "pdftotext", "PDFTOTEXT"),

		CallInterval: r.duration("pipeline.call_interval", 350*time.Millisecond, "CALL_INTERVAL"),
		LogFormat:    r.str("log.format", "console", "LOG_FORMAT"),
	}

	// The default start date is today in the configured timezone.
	today := now
	if loc, err := time.LoadLocation(cfg.Timezone); err == nil {
		today = now.In(loc)
	}
	cfg.StartDate = r.str("schedule.start_date", today.Format("2006-01-02"), "START_DATE")

	if len(r.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(r.errs...))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// raw returns the first non-empty environment value, then the settings value.
func (r *resolver) raw(tomlKey string, envKeys []string) (string, any, bool) {
	for _, k := range envKeys {
		if v, ok := r.lookup(k); ok && strings.TrimSpace(v) != "" {
			return k, strings.TrimSpace(v), true
		}
	}
	if r.settings != nil {
		if v, ok := r.settings.Get(tomlKey); ok {
			return tomlKey, v, true
		}
	}
	return "", nil, false
}

func (r *resolver) str(tomlKey, def string, envKeys ...string) string {
	_, v, ok := r.raw(tomlKey, envKeys)
	if !ok {
		return def
	}
	if s, isString := v.(string); isString {
		return s
	}
	return fmt.Sprint(v)
}

func (r *resolver) num(tomlKey string, def int, envKeys ...string) int {
	key, v, ok := r.raw(tomlKey, envKeys)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			r.fail(key, "an integer", n)
			return def
		}
		return parsed
	}
	r.fail(key, "an integer", v)
	return def
}

func (r *resolver) flag(tomlKey string, def bool, envKeys ...string) bool {
	key, v, ok := r.raw(tomlKey, envKeys)
	if !ok {
		return def
	}
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(b)
		if err != nil {
			r.fail(key, "a boolean", b)
			return def
		}
		return parsed
	}
	r.fail(key, "a boolean", v)
	return def
}

// duration accepts time.ParseDuration syntax or a bare number of seconds.
func (r *resolver) duration(tomlKey string, def time.Duration, envKeys ...string) time.Duration {
	key, v, ok := r.raw(tomlKey, envKeys)
	if !ok {
		return def
	}
	switch d := v.(type) {
	case int64:
		return time.Duration(d) * time.Second
	case int:
		return time.Duration(d) * time.Second
	case string:
		if parsed, err := time.ParseDuration(d); err == nil {
			return parsed
		}
		if secs, err := strconv.ParseFloat(d, 64); err == nil {
			return time.Duration(secs * float64(time.Second))
		}
		r.fail(key, "a duration", d)
		return def
	}
	r.fail(key, "a duration", v)
	return def
}

func (r *resolver) fail(key, want string, got any) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s must be %s, got %v", domain.ErrInvalidInput, key, want, got))
}

// Validate checks that values are in range. Credentials are checked by
// RequirePlatform and RequireAuth, since not every command needs them.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{domain.ErrInvalidInput}, args...)...))
		}
	}

	check(oneOf(c.Platform, PlatformREST, PlatformMCP, PlatformNative), "PLATFORM must be rest, mcp or native, got %q", c.Platform)
	check(oneOf(c.AuthMode, AuthPlatform, AuthOAuth, AuthStatic), "AUTH_MODE must be platform, oauth or static, got %q", c.AuthMode)
	check(oneOf(c.ConnectionsBackend, BackendFile, BackendSQLite), "CONNECTIONS_BACKEND must be file or sqlite, got %q", c.ConnectionsBackend)
	check(c.LinkAttempts >= 1, "LINK_ATTEMPTS must be at least 1")
	check(c.LinkTimeout > 0, "LINK_TIMEOUT must be positive")
	check(c.MaxLessons >= 1, "MAX_LESSONS must be at least 1")
	check(c.DownloadSettle >= 0, "DOWNLOAD_SETTLE must not be negative")
	check(c.CallInterval >= 0, "CALL_INTERVAL must not be negative")
	check(c.CallbackPort >= 0 && c.CallbackPort <= 65535, "OAUTH_CALLBACK_PORT must be a port number")
	check(c.DownloadDir != "", "DOWNLOAD_DIR must not be empty")
	check(c.Platform != PlatformNative || c.AuthMode != AuthPlatform, "PLATFORM=native needs AUTH_MODE oauth or static")

	if _, err := domain.ParseSelectionPolicy(c.ArtifactPolicy); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.Schedule(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// RequirePlatform checks the credentials the selected platform needs.
func (c Config) RequirePlatform() error {
	switch c.Platform {
	case PlatformREST:
		if c.APIKey == "" {
			return fmt.Errorf("config: %w: PLATFORM_API_KEY (or COMPOSIO_API_KEY) is required for the rest platform", domain.ErrInvalidInput)
		}
	case PlatformMCP:
		if c.MCPURL == "" && c.MCPCommand == "" {
			return fmt.Errorf("config: %w: MCP_SERVER_URL or MCP_SERVER_COMMAND is required for the mcp platform", domain.ErrInvalidInput)
		}
	}
	return nil
}

// RequireAuth checks the credentials the selected auth mode needs.
func (c Config) RequireAuth() error {
	var missing []string
	switch c.AuthMode {
	case AuthPlatform:
		if c.APIKey == "" {
			missing = append(missing, "PLATFORM_API_KEY")
		}
		for key, v := range map[string]string{
			"GOOGLE_DRIVE_AUTH_CONFIG_ID": c.FilesAuthConfig,
			"NOTION_AUTH_CONFIG_ID":       c.DatabaseAuthConfig,
			"GOOGLE_CAL_AUTH_CONFIG_ID":   c.CalendarAuthConfig,
		} {
			if v == "" {
				missing = append(missing, key)
			}
		}
	case AuthOAuth:
		if c.GoogleClientID == "" {
			missing = append(missing, "GOOGLE_CLIENT_ID")
		}
		if c.NotionClientID == "" {
			missing = append(missing, "NOTION_CLIENT_ID")
		}
	case AuthStatic:
		if c.GoogleToken == "" {
			missing = append(missing, "GOOGLE_TOKEN")
		}
		if c.NotionToken == "" {
			missing = append(missing, "NOTION_TOKEN")
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fmt.Errorf("config: %w: %s auth needs %s", domain.ErrInvalidInput, c.AuthMode, strings.Join(missing, ", "))
}

// Schedule builds the calendar schedule.
func (c Config) Schedule() (domain.Schedule, error) {
	return domain.NewSchedule(c.StartDate, c.StartTime, c.Timezone, c.IntervalDays, c.EventDuration)
}

// SelectionPolicy returns the parsed artifact selection policy.
func (c Config) SelectionPolicy() domain.SelectionPolicy {
	p, err := domain.ParseSelectionPolicy(c.ArtifactPolicy)
	if err != nil {
		return domain.SelectNewest
	}
	return p
}

// Integrations returns the files, database and calendar integrations with
// the auth config reference the auth mode uses.
func (c Config) Integrations() (files, database, calendar domain.Integration) {
	files = domain.Integration{ID: domain.IntegrationFiles}
	database = domain.Integration{ID: domain.IntegrationDatabase}
	calendar = domain.Integration{ID: domain.IntegrationCalendar}

	switch c.AuthMode {
	case AuthOAuth:
		files.AuthConfigRef = "google"
		database.AuthConfigRef = "notion"
		calendar.AuthConfigRef = "google"
	case AuthStatic:
		files.AuthConfigRef = "GOOGLE_TOKEN"
		database.AuthConfigRef = "NOTION_TOKEN"
		calendar.AuthConfigRef = "GOOGLE_TOKEN"
	default:
		files.AuthConfigRef = c.FilesAuthConfig
		database.AuthConfigRef = c.DatabaseAuthConfig
		calendar.AuthConfigRef = c.CalendarAuthConfig
	}
	return files, database, calendar
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
