package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/coursesync/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/coursesync/internal/core/domain"
	"github.com/custodia-labs/coursesync/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.ConnectionBackend = (*Store)(nil)

const userIDKey = "user_id"

// Store is a SQLite-backed connection cache.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.coursesync/data/connections.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".coursesync", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "connections.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies every .up.sql migration newer than the recorded version.
// Each migration and its version row are committed together.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_connections.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}

	return nil
}

// Load reads the whole cache.
func (s *Store) Load(ctx context.Context) (domain.ConnectionCache, error) {
	cache := domain.NewConnectionCache()

	var userID sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", userIDKey).Scan(&userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return cache, fmt.Errorf("query user id: %w", err)
	}
	cache.UserID = userID.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT integration_id, user_id, token, status, redirect_url, oauth, created_at, updated_at
		FROM connections
		ORDER BY integration_id, user_id
	`)
	if err != nil {
		return cache, fmt.Errorf("query connections: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return cache, err
		}
		cache.Put(conn)
	}
	if err := rows.Err(); err != nil {
		return cache, fmt.Errorf("iterate connections: %w", err)
	}

	return cache, nil
}

// Save replaces the stored cache in one transaction.
func (s *Store) Save(ctx context.Context, cache domain.ConnectionCache) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if cache.UserID == "" {
		_, err = tx.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", userIDKey)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, userIDKey, cache.UserID)
	}
	if err != nil {
		return fmt.Errorf("save user id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM connections"); err != nil {
		return fmt.Errorf("clear connections: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO connections (integration_id, user_id, token, status, redirect_url, oauth, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, conn := range cache.List() {
		oauth, err := marshalOAuth(conn.OAuth)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			string(conn.IntegrationID),
			conn.UserID,
			conn.Token,
			string(conn.Status),
			conn.RedirectURL,
			oauth,
			formatTime(conn.CreatedAt),
			formatTime(conn.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("insert connection %s: %w", conn.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit connections: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(row scanner) (domain.Connection, error) {
	var (
		conn                 domain.Connection
		integrationID        string
		status               string
		oauth                sql.NullString
		createdAt, updatedAt sql.NullString
	)
	if err := row.Scan(&integrationID, &conn.UserID, &conn.Token, &status, &conn.RedirectURL, &oauth, &createdAt, &updatedAt); err != nil {
		return conn, fmt.Errorf("scan connection: %w", err)
	}
	conn.IntegrationID = domain.IntegrationID(integrationID)
	conn.Status = domain.ConnectionStatus(status)
	conn.CreatedAt = parseTime(createdAt)
	conn.UpdatedAt = parseTime(updatedAt)

	if oauth.Valid && oauth.String != "" {
		var tok domain.OAuthToken
		if err := json.Unmarshal([]byte(oauth.String), &tok); err != nil {
			return conn, fmt.Errorf("decode oauth token for %s: %w", conn.Key(), err)
		}
		conn.OAuth = &tok
	}
	return conn, nil
}

func marshalOAuth(tok *domain.OAuthToken) (sql.NullString, error) {
	if tok == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode oauth token: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
