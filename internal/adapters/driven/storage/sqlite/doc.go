// Package sqlite provides a SQLite backend for the connection cache.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.coursesync/data/connections.db
//
// # Thread Safety
//
// All operations are thread-safe. Save replaces the cache inside a single
// transaction, so readers never observe a partial cache.
package sqlite
