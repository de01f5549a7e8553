package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
	"github.com/custodia-labs/coursesync/internal/logger"
)

const (
	// DefaultFileName is the connection cache file name.
	DefaultFileName = "connections.json"

	cacheFileMode   = 0o600
	cacheDirMode    = 0o700
	tempFilePattern = ".connections-*.json.tmp"
)

// Ensure ConnectionBackend implements the interface.
var _ driven.ConnectionBackend = (*ConnectionBackend)(nil)

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

// lockForPath returns a process-wide lock for a cache path so that two
// backends pointing at the same file never interleave writes.
func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

// ConnectionBackend stores the connection cache as a JSON document.
type ConnectionBackend struct {
	path string
	mu   *sync.RWMutex
}

// NewConnectionBackend creates a backend for the file at path.
// An empty path means DefaultFileName in the working directory.
func NewConnectionBackend(path string) (*ConnectionBackend, error) {
	if path == "" {
		path = DefaultFileName
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve connections file: %w", err)
	}
	return &ConnectionBackend{path: abs, mu: lockForPath(abs)}, nil
}

// Path returns the cache file path.
func (b *ConnectionBackend) Path() string {
	return b.path
}

// Load reads the cache. A missing file yields an empty cache. A file that
// cannot be parsed is logged and treated as empty; the next Save replaces it.
func (b *ConnectionBackend) Load(ctx context.Context) (domain.ConnectionCache, error) {
	if err := ctx.Err(); err != nil {
		return domain.ConnectionCache{}, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.NewConnectionCache(), nil
	}
	if err != nil {
		return domain.ConnectionCache{}, fmt.Errorf("read connections file: %w", err)
	}

	var stored domain.ConnectionCache
	if err := json.Unmarshal(data, &stored); err != nil {
		logger.Warn("Could not parse %s, starting with an empty cache: %v", b.path, err)
		return domain.NewConnectionCache(), nil
	}

	cache := domain.NewConnectionCache()
	cache.UserID = stored.UserID
	for key, conn := range stored.Connections {
		if conn.IntegrationID == "" || conn.UserID == "" || !conn.Status.IsValid() {
			logger.Debug("dropping unrecognised connection entry %q", key)
			continue
		}
		cache.Put(conn)
	}
	return cache, nil
}

// Save writes the cache atomically.
func (b *ConnectionBackend) Save(ctx context.Context, cache domain.ConnectionCache) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if cache.Connections == nil {
		cache.Connections = map[string]domain.Connection{}
	}

	if err := os.MkdirAll(filepath.Dir(b.path), cacheDirMode); err != nil {
		return fmt.Errorf("create connections directory: %w", err)
	}

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return fmt.Errorf("encode connections file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(b.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp connections file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp connections file: %w", err)
	}

	if err := tempFile.Chmod(cacheFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp connections file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp connections file: %w", err)
	}

	if err := os.Rename(tempName, b.path); err != nil {
		return fmt.Errorf("replace connections file: %w", err)
	}
	cleanup = false

	return nil
}
