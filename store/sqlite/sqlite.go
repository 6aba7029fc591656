// Package sqlite implements picoagent.Store using pure-Go SQLite.
// Zero CGO required.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	picoagent "github.com/siriusctrl/picoagent"

	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets a structured logger for store operations.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store archives conversations and task events in a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ picoagent.Store = (*Store)(nil)

// New creates a Store at dbPath. A single shared connection serializes all
// goroutines through one writer, eliminating SQLITE_BUSY errors from
// concurrent workers archiving at once.
func New(dbPath string, opts ...Option) *Store {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		// sql.Open only fails when the driver is not registered; with the
		// blank import above that never happens.
		panic(fmt.Sprintf("sqlite: open driver: %v", err))
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, logger: slog.New(slog.DiscardHandler)}
	for _, o := range opts {
		o(s)
	}
	return s
}

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);
CREATE TABLE IF NOT EXISTS task_events (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, created_at);
`

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("sqlite: init schema: %w", err)
	}
	return nil
}

func (s *Store) CreateThread(ctx context.Context, t picoagent.Thread) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, title, created_at) VALUES (?, ?, ?)`,
		t.ID, t.Title, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: create thread: %w", err)
	}
	s.logger.Debug("thread created", "thread", t.ID)
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, m picoagent.StoredMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		m.ID, m.ThreadID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: append message: %w", err)
	}
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, threadID string, limit int) ([]picoagent.StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, created_at FROM messages
		 WHERE thread_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	defer rows.Close()

	var out []picoagent.StoredMessage
	for rows.Next() {
		var m picoagent.StoredMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		out = append(out, m)
	}
	// Reverse to chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) RecordTaskEvent(ctx context.Context, e picoagent.TaskEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO task_events (id, task_id, status, detail, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.ID, e.TaskID, e.Status, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: record task event: %w", err)
	}
	return nil
}

func (s *Store) ListTaskEvents(ctx context.Context, taskID string, limit int) ([]picoagent.TaskEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task_id, status, detail, created_at FROM task_events
		 WHERE task_id = ? ORDER BY created_at ASC LIMIT ?`,
		taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list task events: %w", err)
	}
	defer rows.Close()

	var out []picoagent.TaskEvent
	for rows.Next() {
		var e picoagent.TaskEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan task event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
