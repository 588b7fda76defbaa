// Package storage provides the persistent key-value substrate the service
// runs on: a read-only Snapshot for off-chain tasks and a read-write Fork
// for on-chain handler execution, backed by SQLite (spec §5: "the persistent
// store is accessed read-only by off-chain tasks and read-write only by
// on-chain handlers").
package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps the SQLite connection backing the service's persistent
// indices.
type Store struct {
	conn *sql.DB
	path string
}

// Open opens (creating if necessary) a SQLite database at path with WAL
// mode and a busy timeout, matching the teacher's database bring-up.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return &Store{conn: conn, path: path}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	slog.Info("closing storage", "path", s.path)
	return s.conn.Close()
}

// Snapshot returns a read-only view over the current committed state, for
// use by off-chain tasks (spec §5 "Snapshot isolation for off-chain tasks").
// A single transaction with default isolation is sufficient: SQLite's
// default read isolation already gives each query a consistent view as of
// its start, and the on-chain handler is this service's only writer.
func (s *Store) Snapshot() (*Snapshot, error) {
	tx, err := s.conn.BeginTx(context.Background(), &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return &Snapshot{querier: tx, closer: tx.Rollback}, nil
}

// Fork opens a read-write transaction for on-chain handler execution. The
// caller must Commit or Rollback.
func (s *Store) Fork() (*Fork, error) {
	tx, err := s.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("open fork: %w", err)
	}
	return &Fork{Snapshot: Snapshot{querier: tx, closer: tx.Rollback}, tx: tx}, nil
}

// querier is the subset of *sql.Tx that read-only Schema getters need.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Snapshot is a read-only view over committed state.
type Snapshot struct {
	querier querier
	closer  func() error
}

// Close releases the snapshot's underlying transaction.
func (s *Snapshot) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

func (s *Snapshot) Query(query string, args ...any) (*sql.Rows, error) {
	return s.querier.Query(query, args...)
}

func (s *Snapshot) QueryRow(query string, args ...any) *sql.Row {
	return s.querier.QueryRow(query, args...)
}

// Fork is a read-write view, the only context in which persistent state may
// be mutated (spec §5).
type Fork struct {
	Snapshot
	tx *sql.Tx
}

func (f *Fork) Exec(query string, args ...any) (sql.Result, error) {
	return f.tx.Exec(query, args...)
}

// Commit finalizes all writes made through this fork.
func (f *Fork) Commit() error {
	return f.tx.Commit()
}

// Rollback discards all writes made through this fork.
func (f *Fork) Rollback() error {
	return f.tx.Rollback()
}

// RunMigrations applies all pending SQL migration files from the embedded
// migrations directory, in ascending numeric order, tracking applied
// versions in a schema_migrations table.
func (s *Store) RunMigrations() error {
	if _, err := s.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var version int
		if _, err := fmt.Sscanf(entry.Name(), "%d", &version); err != nil {
			slog.Warn("skipping migration with unparseable version", "file", entry.Name())
			continue
		}

		var count int
		if err := s.conn.QueryRow("SELECT COUNT(*) FROM schema_migrations WHERE version = ?", version).Scan(&count); err != nil {
			return fmt.Errorf("check migration status for version %d: %w", version, err)
		}
		if count > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		slog.Info("applying migration", "version", version, "file", entry.Name())

		tx, err := s.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %s: %w", entry.Name(), err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", version, err)
		}
	}

	return nil
}
