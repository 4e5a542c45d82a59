// Package journal keeps a SQLite record of every panel action that reached
// the dispatch stage.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"narrate/pkg/logx"
)

// SchemaVersion is the current journal schema version.
const SchemaVersion = 1

// Entry is one journaled action.
type Entry struct {
	ID        string
	Action    string
	Method    string
	Target    string
	Outcome   string
	Status    int
	Reason    string
	Message   string
	Duration  time.Duration
	CreatedAt time.Time
}

// Store is a journal backed by a SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *logx.Logger
}

// Open opens (creating if needed) the journal at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, logx.Wrap(err, "failed to open journal")
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to ping journal")
	}

	// Single writer; also keeps ":memory:" on one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	logger := logx.NewLogger("journal")
	if err := migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to initialize journal schema")
	}

	return &Store{db: db, logger: logger}, nil
}

func migrate(db *sql.DB, logger *logx.Logger) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("failed to create schema_version: %w", err)
	}

	var version int
	err := db.QueryRow(`SELECT version FROM schema_version LIMIT 1`).Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		version = 0
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if version >= SchemaVersion {
		return nil
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS actions (
			id TEXT PRIMARY KEY,
			action TEXT NOT NULL,
			method TEXT NOT NULL,
			target TEXT NOT NULL,
			outcome TEXT NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			message TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_created ON actions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_action ON actions(action)`,
		`DELETE FROM schema_version`,
		fmt.Sprintf(`INSERT INTO schema_version (version) VALUES (%d)`, SchemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info("Journal schema migrated from version %d to %d", version, SchemaVersion)
	return nil
}

// Record stores e. CreatedAt defaults to now.
func (s *Store) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("journal entry has no id")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, action, method, target, outcome, status, reason, message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Action, e.Method, e.Target, e.Outcome, e.Status, e.Reason, e.Message,
		e.Duration.Milliseconds(), e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record action %s: %w", e.ID, err)
	}
	s.logger.Debug("journaled %s %s -> %s", e.Action, e.Target, e.Outcome)
	return nil
}

// Query narrows Recent.
type Query struct {
	Action string
	Limit  int
}

// Recent returns entries newest first.
func (s *Store) Recent(ctx context.Context, q Query) ([]Entry, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	var (
		where []string
		args  []any
	)
	if q.Action != "" {
		where = append(where, "action = ?")
		args = append(args, q.Action)
	}
	query := `SELECT id, action, method, target, outcome, status, reason, message, duration_ms, created_at FROM actions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Method, &e.Target, &e.Outcome, &e.Status,
			&e.Reason, &e.Message, &ms, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan journal row: %w", err)
		}
		e.Duration = time.Duration(ms) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journal: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close journal: %w", err)
	}
	return nil
}
