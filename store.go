package picoagent

import "context"

// Thread groups the archived messages of one conversation.
type Thread struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt int64  `json:"created_at"`
}

// StoredMessage is one archived conversation entry.
type StoredMessage struct {
	ID        string `json:"id"`
	ThreadID  string `json:"thread_id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"created_at"`
}

// TaskEvent records a task lifecycle transition for later inspection.
type TaskEvent struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Detail    string `json:"detail"`
	CreatedAt int64  `json:"created_at"`
}

// Store archives conversations and task events. The runtime writes to it
// best-effort: archive failures are logged, never surfaced to the loop.
// Implementations live under store/ (sqlite, postgres).
type Store interface {
	Init(ctx context.Context) error
	CreateThread(ctx context.Context, t Thread) error
	AppendMessage(ctx context.Context, m StoredMessage) error
	RecentMessages(ctx context.Context, threadID string, limit int) ([]StoredMessage, error)
	RecordTaskEvent(ctx context.Context, e TaskEvent) error
	ListTaskEvents(ctx context.Context, taskID string, limit int) ([]TaskEvent, error)
	Close() error
}
