// Package history provides a SQLite-backed request-history store for the
// GLIH backend. Every ingestion and query is recorded so operators can
// audit what entered the knowledge base and what was asked of it, across
// server restarts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Kind identifies the type of a recorded event.
type Kind string

const (
	// KindIngest is a document ingestion (file, URL, or raw text batch).
	KindIngest Kind = "ingest"
	// KindQuery is a knowledge-base query.
	KindQuery Kind = "query"
)

// Event is one recorded ingestion or query.
type Event struct {
	// Kind is the type of event.
	Kind Kind
	// Collection is the vector collection the event targeted.
	Collection string
	// Subject is the source (file/URL) for ingestions or the question for queries.
	Subject string
	// Count is chunks stored for ingestions, results retrieved for queries.
	Count int
	// CreatedAt is when the event was persisted.
	CreatedAt time.Time
}

// EventStore persists and retrieves request history. Implementations must
// be safe for concurrent use.
type EventStore interface {
	// Record persists a single event.
	Record(ctx context.Context, ev Event) error
	// Recent returns the most recent n events, newest-first. An empty kind
	// returns events of all kinds. If fewer than n exist, all are returned.
	Recent(ctx context.Context, kind Kind, n int) ([]Event, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is an EventStore backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.glih/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".glih")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS events (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    kind         TEXT    NOT NULL CHECK(kind IN ('ingest','query')),
    collection   TEXT    NOT NULL,
    subject      TEXT    NOT NULL,
    count        INTEGER NOT NULL,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_events_kind_created
    ON events (kind, created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// Record persists a single event. A zero CreatedAt is stamped with now.
func (s *SQLiteStore) Record(ctx context.Context, ev Event) error {
	ts := ev.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	const q = `INSERT INTO events (kind, collection, subject, count, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, string(ev.Kind), ev.Collection, ev.Subject, ev.Count, ts.Unix()); err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n events, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, kind Kind, n int) ([]Event, error) {
	const all = `
SELECT kind, collection, subject, count, created_at
FROM   events
ORDER  BY created_at DESC, id DESC
LIMIT  ?`
	const byKind = `
SELECT kind, collection, subject, count, created_at
FROM   events
WHERE  kind = ?
ORDER  BY created_at DESC, id DESC
LIMIT  ?`

	var rows *sql.Rows
	var err error
	if kind == "" {
		rows, err = s.db.QueryContext(ctx, all, n)
	} else {
		rows, err = s.db.QueryContext(ctx, byKind, string(kind), n)
	}
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var ts int64
		var kindStr string
		if err := rows.Scan(&kindStr, &ev.Collection, &ev.Subject, &ev.Count, &ts); err != nil {
			return nil, fmt.Errorf("history: recent scan: %w", err)
		}
		ev.Kind = Kind(kindStr)
		ev.CreatedAt = time.Unix(ts, 0)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: recent rows: %w", err)
	}
	return events, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}
