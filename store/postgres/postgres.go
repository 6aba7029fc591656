// Package postgres implements picoagent.Store using PostgreSQL.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	picoagent "github.com/siriusctrl/picoagent"
)

// Store archives conversations and task events in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ picoagent.Store = (*Store)(nil)

// New creates a Store on an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS threads (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	thread_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at);
CREATE TABLE IF NOT EXISTS task_events (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL,
	status TEXT NOT NULL,
	detail TEXT NOT NULL DEFAULT '',
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, created_at);
`

// Init creates the schema.
func (s *Store) Init(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("postgres: init schema: %w", err)
	}
	return nil
}

func (s *Store) CreateThread(ctx context.Context, t picoagent.Thread) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO threads (id, title, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		t.ID, t.Title, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: create thread: %w", err)
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, m picoagent.StoredMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO messages (id, thread_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
		m.ID, m.ThreadID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: append message: %w", err)
	}
	return nil
}

func (s *Store) RecentMessages(ctx context.Context, threadID string, limit int) ([]picoagent.StoredMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, thread_id, role, content, created_at FROM messages
		 WHERE thread_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: recent messages: %w", err)
	}
	defer rows.Close()

	var out []picoagent.StoredMessage
	for rows.Next() {
		var m picoagent.StoredMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan message: %w", err)
		}
		out = append(out, m)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (s *Store) RecordTaskEvent(ctx context.Context, e picoagent.TaskEvent) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO task_events (id, task_id, status, detail, created_at) VALUES ($1, $2, $3, $4, $5)`,
		e.ID, e.TaskID, e.Status, e.Detail, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: record task event: %w", err)
	}
	return nil
}

func (s *Store) ListTaskEvents(ctx context.Context, taskID string, limit int) ([]picoagent.TaskEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, task_id, status, detail, created_at FROM task_events
		 WHERE task_id = $1 ORDER BY created_at ASC LIMIT $2`,
		taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list task events: %w", err)
	}
	defer rows.Close()

	var out []picoagent.TaskEvent
	for rows.Next() {
		var e picoagent.TaskEvent
		if err := rows.Scan(&e.ID, &e.TaskID, &e.Status, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan task event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close is a no-op; the pool is owned by the caller.
func (s *Store) Close() error {
	return nil
}
