package file

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, DefaultDirName, "config.toml"), store.Path())
}

func TestNewConfigStore_CreatesNestedDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")

	_, err := NewConfigStore(dir)
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestNewConfigStore_CorruptedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte("not = [valid"), 0600))

	_, err := NewConfigStore(dir)
	assert.Error(t, err)
}

func TestConfigStore_ReadsNestedTables(t *testing.T) {
	dir := t.TempDir()
	content := `
[schedule]
start_date = "2025-10-06"
interval_days = 7
event_duration = "90m"

[extract]
fallback = true

[integrations.files]
auth_config = "ac_drive"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0600))

	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	assert.Equal(t, "2025-10-06", store.GetString("schedule.start_date"))
	assert.Equal(t, 7, store.GetInt("schedule.interval_days"))
	assert.Equal(t, 90*time.Minute, store.GetDuration("schedule.event_duration"))
	assert.True(t, store.GetBool("extract.fallback"))
	assert.Equal(t, "ac_drive", store.GetString("integrations.files.auth_config"))
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("n", 42))
	require.NoError(t, store.Set("n_str", "12"))
	require.NoError(t, store.Set("b_str", "true"))
	require.NoError(t, store.Set("secs", int64(30)))
	require.NoError(t, store.Set("list", []string{"a", "b"}))

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Equal(t, "", store.GetString("n"))
	assert.Equal(t, "", store.GetString("missing"))
	assert.Equal(t, 42, store.GetInt("n"))
	assert.Equal(t, 12, store.GetInt("n_str"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.True(t, store.GetBool("b_str"))
	assert.False(t, store.GetBool("s"))
	assert.Equal(t, 30*time.Second, store.GetDuration("secs"))
	assert.Zero(t, store.GetDuration("s"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("list"))
	assert.Nil(t, store.GetStringSlice("missing"))
}

func TestConfigStore_SaveReloadWritesTables(t *testing.T) {
	dir := t.TempDir()
	store, err := NewConfigStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Set("calendar.id", "primary"))
	require.NoError(t, store.Set("schedule.interval_days", 7))
	require.NoError(t, store.Set("download.dir", "./downloads"))

	raw, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "[calendar]")
	assert.Contains(t, string(raw), "[schedule]")
	assert.NotContains(t, string(raw), `'calendar.id'`)

	reloaded, err := NewConfigStore(dir)
	require.NoError(t, err)
	assert.Equal(t, "primary", reloaded.GetString("calendar.id"))
	assert.Equal(t, 7, reloaded.GetInt("schedule.interval_days"))
	assert.Equal(t, "./downloads", reloaded.GetString("download.dir"))
}

func TestConfigStore_ConflictingKeys(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Set("database", "notion"))
	assert.Error(t, store.Set("database.id", "db-1"))
}

func TestConfigStore_FilePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("user.id", "u1"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_LoadMissingFile(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Set("k", "v"))
	require.NoError(t, os.Remove(store.Path()))

	require.NoError(t, store.Load())
	_, ok := store.Get("k")
	assert.False(t, ok)
}

func TestConfigStore_Concurrency(t *testing.T) {
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("counter", i)
			_ = store.GetInt("counter")
		}()
	}
	wg.Wait()

	_, ok := store.Get("counter")
	assert.True(t, ok)
}
