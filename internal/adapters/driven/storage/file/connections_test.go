package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/coursesync/internal/core/domain"
)

func newBackend(t *testing.T) *ConnectionBackend {
	t.Helper()
	b, err := NewConnectionBackend(filepath.Join(t.TempDir(), "state", "connections.json"))
	require.NoError(t, err)
	return b
}

func TestConnectionBackend_LoadMissingFile(t *testing.T) {
	b := newBackend(t)

	cache, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cache.UserID)
	assert.NotNil(t, cache.Connections)
	assert.Empty(t, cache.Connections)
}

func TestConnectionBackend_SaveAndLoad(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	created := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	cache := domain.NewConnectionCache()
	cache.UserID = "user-1"
	cache.Put(domain.Connection{
		IntegrationID: domain.IntegrationFiles,
		UserID:        "user-1",
		Token:         "ca_123",
		Status:        domain.ConnectionActive,
		CreatedAt:     created,
		UpdatedAt:     created,
	})
	cache.Put(domain.Connection{
		IntegrationID: domain.IntegrationCalendar,
		UserID:        "user-1",
		Token:         "ca_456",
		Status:        domain.ConnectionPending,
		RedirectURL:   "https://consent.example.com/x",
		OAuth:         &domain.OAuthToken{AccessToken: "at", TokenType: "Bearer"},
	})

	require.NoError(t, b.Save(ctx, cache))

	loaded, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.UserID)
	require.Len(t, loaded.Connections, 2)

	drive, ok := loaded.Get(domain.IntegrationFiles, "user-1")
	require.True(t, ok)
	assert.True(t, drive.IsActive())
	assert.True(t, drive.CreatedAt.Equal(created))

	cal, ok := loaded.Get(domain.IntegrationCalendar, "user-1")
	require.True(t, ok)
	assert.Equal(t, "https://consent.example.com/x", cal.RedirectURL)
	require.NotNil(t, cal.OAuth)
	assert.Equal(t, "at", cal.OAuth.AccessToken)
}

func TestConnectionBackend_SaveIsAtomic(t *testing.T) {
	b := newBackend(t)
	ctx := context.Background()

	cache := domain.NewConnectionCache()
	cache.UserID = "u"
	require.NoError(t, b.Save(ctx, cache))
	require.NoError(t, b.Save(ctx, cache))

	entries, err := os.ReadDir(filepath.Dir(b.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are renamed away")
	assert.Equal(t, "connections.json", entries[0].Name())

	info, err := os.Stat(b.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConnectionBackend_CorruptFileStartsEmpty(t *testing.T) {
	b := newBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.Path()), 0o700))
	require.NoError(t, os.WriteFile(b.Path(), []byte("{not json"), 0o600))

	cache, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cache.Connections)
}

func TestConnectionBackend_DropsUnrecognisedEntries(t *testing.T) {
	b := newBackend(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(b.Path()), 0o700))
	legacy := `{"user_id": "u", "connections": {"google_drive": {"id": "ca_1"}, "notion:u": {"integration_id": "notion", "user_id": "u", "connection_token": "t", "status": "active"}}}`
	require.NoError(t, os.WriteFile(b.Path(), []byte(legacy), 0o600))

	cache, err := b.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u", cache.UserID)
	require.Len(t, cache.Connections, 1)
	_, ok := cache.Get(domain.IntegrationDatabase, "u")
	assert.True(t, ok)
}

func TestConnectionBackend_CancelledContext(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, b.Save(ctx, domain.NewConnectionCache()), context.Canceled)
}

func TestNewConnectionBackend_DefaultPath(t *testing.T) {
	b, err := NewConnectionBackend("")
	require.NoError(t, err)
	assert.Equal(t, DefaultFileName, filepath.Base(b.Path()))
	assert.True(t, filepath.IsAbs(b.Path()))
}
