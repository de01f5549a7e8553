package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_Seed(t *testing.T) {
	store := NewConfigStore(map[string]any{"calendar.id": "primary"}, map[string]any{"link.attempts": 3})

	assert.Equal(t, "primary", store.GetString("calendar.id"))
	assert.Equal(t, 3, store.GetInt("link.attempts"))
	assert.Equal(t, ":memory:", store.Path())
	assert.NoError(t, store.Save())
	assert.NoError(t, store.Load())
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("s", "hello"))
	require.NoError(t, store.Set("i64", int64(7)))
	require.NoError(t, store.Set("f", 2.0))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("list", []any{"a", 1, "b"}))

	assert.Equal(t, "hello", store.GetString("s"))
	assert.Equal(t, "", store.GetString("i64"))
	assert.Equal(t, 7, store.GetInt("i64"))
	assert.Equal(t, 2, store.GetInt("f"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("missing"))
	assert.Equal(t, []string{"a", "b"}, store.GetStringSlice("list"))
	assert.Nil(t, store.GetStringSlice("s"))
}

func TestConfigStore_GetDuration(t *testing.T) {
	store := NewConfigStore(map[string]any{
		"str":  "350ms",
		"secs": 30,
		"dur":  2 * time.Minute,
		"bad":  "soon",
	})

	assert.Equal(t, 350*time.Millisecond, store.GetDuration("str"))
	assert.Equal(t, 30*time.Second, store.GetDuration("secs"))
	assert.Equal(t, 2*time.Minute, store.GetDuration("dur"))
	assert.Zero(t, store.GetDuration("bad"))
	assert.Zero(t, store.GetDuration("missing"))
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("key", i)
			_ = store.GetInt("key")
		}()
	}
	wg.Wait()

	_, ok := store.Get("key")
	assert.True(t, ok)
}
