package native

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/custodia-labs/coursesync/internal/adapters/driven/platform/ratelimit"
	"github.com/custodia-labs/coursesync/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/coursesync/internal/core/domain"
)

// redirect sends every request to the test server, keeping the path.
type redirect struct {
	target *url.URL
}

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func activeBackend(t *testing.T, conns ...domain.Connection) *memory.ConnectionBackend {
	t.Helper()
	backend := memory.NewConnectionBackend()
	cache := domain.NewConnectionCache()
	for _, c := range conns {
		c.Status = domain.ConnectionActive
		c.UserID = "user-1"
		cache.Put(c)
	}
	require.NoError(t, backend.Save(context.Background(), cache))
	return backend
}

func newTestPlatform(t *testing.T, handler http.HandlerFunc) (*Platform, string) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	backend := activeBackend(t,
		domain.Connection{IntegrationID: domain.IntegrationFiles, Token: "drive-token"},
		domain.Connection{IntegrationID: domain.IntegrationCalendar, Token: "cal-token"},
		domain.Connection{IntegrationID: domain.IntegrationDatabase, Token: "notion-token"},
	)

	dir := filepath.Join(t.TempDir(), "downloads")
	unlimited := ratelimit.Config{}
	p := NewPlatform(NewTokenSources(backend, nil), dir,
		WithGoogleOptions(option.WithEndpoint(srv.URL+"/")),
		WithNotionHTTPClient(&http.Client{Transport: redirect{target: target}}),
		WithLimiter(ratelimit.NewForService(ratelimit.ServiceDrive, unlimited)),
		WithLimiter(ratelimit.NewForService(ratelimit.ServiceCalendar, unlimited)),
		WithLimiter(ratelimit.NewForService(ratelimit.ServiceNotion, unlimited)),
	)
	return p, dir
}

func attempt(t *testing.T, p *Platform, call domain.ToolCall) (domain.Value, error) {
	t.Helper()
	strategies := p.Strategies()
	require.Len(t, strategies, 1)
	assert.Equal(t, StrategyName, strategies[0].Name())
	return strategies[0].Attempt(context.Background(), call)
}

func TestAttempt_UnknownOperationIsShapeMismatch(t *testing.T) {
	p, _ := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request %s", r.URL.Path)
	})

	_, err := attempt(t, p, domain.ToolCall{Operation: "SLACK_SEND_MESSAGE"})
	assert.ErrorIs(t, err, domain.ErrShapeMismatch)
}

func TestFindFile(t *testing.T) {
	p, _ := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files", r.URL.Path)
		assert.Equal(t, "name = 'Course Syllabus.pdf' and trashed = false", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer drive-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"files":[{"id":"f1","name":"Course Syllabus.pdf","mimeType":"application/pdf"}]}`)
	})

	raw, err := attempt(t, p, domain.ToolCall{
		Operation:   "GOOGLEDRIVE_FIND_FILE",
		Arguments:   domain.Args("q", "name = 'Course Syllabus.pdf'"),
		Integration: domain.IntegrationFiles,
		UserID:      "user-1",
	})
	require.NoError(t, err)

	files, ok := raw.Get("files")
	require.True(t, ok)
	first, _ := files.Index(0)
	id, _ := first.Get("id")
	assert.Equal(t, "f1", id.Text())
}

func TestFindFile_MissingQuery(t *testing.T) {
	p, _ := newTestPlatform(t, func(http.ResponseWriter, *http.Request) {})

	_, err := attempt(t, p, domain.ToolCall{Operation: "GOOGLEDRIVE_FIND_FILE", Integration: domain.IntegrationFiles, UserID: "user-1"})
	assert.ErrorIs(t, err, domain.ErrIntegration)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDownloadFile(t *testing.T) {
	p, dir := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/f1", r.URL.Path)
		if r.URL.Query().Get("alt") == "media" {
			_, _ = io.WriteString(w, "%PDF-1.7 lessons")
			return
		}
		_, _ = io.WriteString(w, `{"id":"f1","name":"Course Syllabus.pdf","mimeType":"application/pdf"}`)
	})

	raw, err := attempt(t, p, domain.ToolCall{
		Operation:   "GOOGLEDRIVE_DOWNLOAD_FILE",
		Arguments:   domain.Args("file_id", "f1"),
		Integration: domain.IntegrationFiles,
		UserID:      "user-1",
	})
	require.NoError(t, err)

	path, _ := raw.Get("file_path")
	assert.Equal(t, filepath.Join(dir, "Course Syllabus.pdf"), path.Text())
	content, err := os.ReadFile(path.Text())
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 lessons", string(content))
}

func TestDownloadFile_ExportsGoogleDocs(t *testing.T) {
	p, dir := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/files/d1/export":
			assert.Equal(t, "application/pdf", r.URL.Query().Get("mimeType"))
			_, _ = io.WriteString(w, "%PDF exported")
		case "/files/d1":
			_, _ = io.WriteString(w, `{"id":"d1","name":"Syllabus","mimeType":"application/vnd.google-apps.document"}`)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	raw, err := attempt(t, p, domain.ToolCall{
		Operation:   "GOOGLEDRIVE_DOWNLOAD_FILE",
		Arguments:   domain.Args("file_id", "d1"),
		Integration: domain.IntegrationFiles,
		UserID:      "user-1",
	})
	require.NoError(t, err)
	path, _ := raw.Get("file_path")
	assert.Equal(t, filepath.Join(dir, "Syllabus.pdf"), path.Text())
}

func TestDownloadFile_NotFound(t *testing.T) {
	p, _ := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found: f9."}}`)
	})

	_, err := attempt(t, p, domain.ToolCall{
		Operation:   "GOOGLEDRIVE_DOWNLOAD_FILE",
		Arguments:   domain.Args("file_id", "f9"),
		Integration: domain.IntegrationFiles,
		UserID:      "user-1",
	})
	assert.ErrorIs(t, err, domain.ErrIntegration)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateEvent(t *testing.T) {
	var got map[string]any
	p, _ := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer cal-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id":"ev1","status":"confirmed"}`)
	})

	raw, err := attempt(t, p, domain.ToolCall{
		Operation: "GOOGLECALENDAR_CREATE_EVENT",
		Arguments: domain.Args(
			"calendar_id", "primary",
			"start_datetime", "2025-10-06T09:00:00",
			"timezone", "America/New_York",
			"summary", "Week 1",
			"description", "Introduction",
			"event_duration_hour", 1,
			"event_duration_minutes", 30,
		),
		Integration: domain.IntegrationCalendar,
		UserID:      "user-1",
	})
	require.NoError(t, err)

	id, _ := raw.Get("id")
	assert.Equal(t, "ev1", id.Text())
	assert.Equal(t, "Week 1", got["summary"])
	assert.Equal(t, "Introduction", got["description"])
	assert.Equal(t, map[string]any{"dateTime": "2025-10-06T09:00:00-04:00", "timeZone": "America/New_York"}, got["start"])
	assert.Equal(t, map[string]any{"dateTime": "2025-10-06T10:30:00-04:00", "timeZone": "America/New_York"}, got["end"])
}

func TestCreateEvent_BadStart(t *testing.T) {
	p, _ := newTestPlatform(t, func(http.ResponseWriter, *http.Request) {})

	_, err := attempt(t, p, domain.ToolCall{
		Operation:   "GOOGLECALENDAR_CREATE_EVENT",
		Arguments:   domain.Args("start_datetime", "next monday"),
		Integration: domain.IntegrationCalendar,
		UserID:      "user-1",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInsertRow(t *testing.T) {
	var got map[string]any
	p, _ := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/pages", r.URL.Path)
		assert.Equal(t, "Bearer notion-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"object":"page","id":"page-1","url":"https://notion.so/page-1"}`)
	})

	raw, err := attempt(t, p, domain.ToolCall{
		Operation: "NOTION_INSERT_ROW_DATABASE",
		Arguments: domain.Args("database_id", "db-1", "properties", []map[string]any{
			{"name": "Name", "type": "title", "value": "Week 1"},
			{"name": "Description", "type": "rich_text", "value": "Introduction"},
		}),
		Integration: domain.IntegrationDatabase,
		UserID:      "user-1",
	})
	require.NoError(t, err)

	id, _ := raw.Get("id")
	assert.Equal(t, "page-1", id.Text())

	parent, _ := got["parent"].(map[string]any)
	assert.Equal(t, "db-1", parent["database_id"])
	props, _ := got["properties"].(map[string]any)
	assert.Contains(t, props, "Name")
	assert.Contains(t, props, "Description")
}

func TestInsertRow_Unauthorized(t *testing.T) {
	p, _ := newTestPlatform(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`)
	})

	_, err := attempt(t, p, domain.ToolCall{
		Operation: "NOTION_INSERT_ROW_DATABASE",
		Arguments: domain.Args("database_id", "db-1", "properties", []map[string]any{
			{"name": "Name", "type": "title", "value": "Week 1"},
		}),
		Integration: domain.IntegrationDatabase,
		UserID:      "user-1",
	})
	assert.ErrorIs(t, err, domain.ErrIntegration)
	assert.ErrorIs(t, err, domain.ErrAuthInvalid)
}

func TestNotionProperties(t *testing.T) {
	props, err := notionProperties(domain.FromAny([]map[string]any{
		{"name": "Week", "type": "number", "value": 3},
		{"name": "Done", "type": "checkbox", "value": true},
		{"name": "Tag", "type": "select", "value": "Lecture"},
	}))
	require.NoError(t, err)
	assert.Len(t, props, 3)

	_, err = notionProperties(domain.FromAny([]map[string]any{{"name": "When", "type": "date", "value": "x"}}))
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	_, err = notionProperties(domain.StringValue("Name=Week 1"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRichText_Splits(t *testing.T) {
	long := make([]rune, notionTextLimit+5)
	for i := range long {
		long[i] = 'a'
	}
	runs := richText(string(long))
	require.Len(t, runs, 2)
	assert.Len(t, runs[1].Text.Content, 5)
}

func TestTokenSources(t *testing.T) {
	backend := activeBackend(t, domain.Connection{
		IntegrationID: domain.IntegrationFiles,
		OAuth:         &domain.OAuthToken{AccessToken: "oauth-access", TokenType: "Bearer"},
	})
	sources := NewTokenSources(backend, nil)

	tok, err := sources.Token(context.Background(), domain.IntegrationFiles, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "oauth-access", tok)

	_, err = sources.Token(context.Background(), domain.IntegrationDatabase, "user-1")
	assert.ErrorIs(t, err, domain.ErrAuthRequired)
}
