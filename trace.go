package picoagent

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TraceKind enumerates the event kinds a loop emits.
type TraceKind string

const (
	TraceAgentStart TraceKind = "agent_start"
	TraceAgentEnd   TraceKind = "agent_end"
	TraceLLMStart   TraceKind = "llm_start"
	TraceLLMEnd     TraceKind = "llm_end"
	TraceToolStart  TraceKind = "tool_start"
	TraceToolEnd    TraceKind = "tool_end"
	TraceError      TraceKind = "error"
)

// TraceEvent is one line of a trace file: a timed span event in the tree
// rooted at the loop's agent span.
type TraceEvent struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentSpan string         `json:"parent_span_id,omitempty"`
	Timestamp  string         `json:"ts"`
	Kind       TraceKind      `json:"event"`
	Data       map[string]any `json:"data,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
}

// Tracer writes trace events as JSON lines to <dir>/<trace-id>.jsonl. The
// file is created lazily on first emit and every per-event failure is
// swallowed: tracing must never crash a loop.
type Tracer struct {
	dir     string
	traceID string
	logger  *slog.Logger

	mu sync.Mutex
	f  *os.File
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// TracerLogger sets a structured logger for swallowed write failures.
func TracerLogger(l *slog.Logger) TracerOption {
	return func(t *Tracer) { t.logger = l }
}

// NewTracer creates a Tracer writing under dir with a fresh trace id.
func NewTracer(dir string, opts ...TracerOption) *Tracer {
	t := &Tracer{dir: dir, traceID: NewID(), logger: nopLogger}
	for _, o := range opts {
		o(t)
	}
	return t
}

// TraceID returns the trace id shared by all events of this tracer.
func (t *Tracer) TraceID() string { return t.traceID }

// Path returns the trace file path.
func (t *Tracer) Path() string {
	return filepath.Join(t.dir, t.traceID+".jsonl")
}

// Emit appends one event line. Failures are logged at debug and dropped.
func (t *Tracer) Emit(ev TraceEvent) {
	ev.TraceID = t.traceID
	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	line, err := json.Marshal(ev)
	if err != nil {
		t.logger.Debug("trace marshal failed", "error", err)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		if err := os.MkdirAll(t.dir, 0o755); err != nil {
			t.logger.Debug("trace dir create failed", "dir", t.dir, "error", err)
			return
		}
		f, err := os.OpenFile(t.Path(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			t.logger.Debug("trace file open failed", "path", t.Path(), "error", err)
			return
		}
		t.f = f
	}
	if _, err := t.f.Write(append(line, '\n')); err != nil {
		t.logger.Debug("trace write failed", "error", err)
	}
}

// Close releases the trace file if one was opened.
func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}

// Hooks returns the hook adapter that mirrors one loop invocation into the
// trace file as a span tree: one agent span, one LLM span per turn, one
// tool span per tool call (parented under the turn's LLM span).
//
// The adapter holds per-loop span state and is not reusable across loops;
// build a fresh one per invocation.
func (t *Tracer) Hooks(model string) *Hooks {
	a := &traceAdapter{tracer: t, model: model, toolSpans: make(map[string]string)}
	return a.hooks()
}

type traceAdapter struct {
	tracer    *Tracer
	model     string
	agentSpan string
	llmSpan   string
	toolSpans map[string]string // tool-call id -> span id
}

func (a *traceAdapter) hooks() *Hooks {
	return &Hooks{
		OnLoopStart: func(ctx context.Context) error {
			a.agentSpan = NewID()
			a.tracer.Emit(TraceEvent{
				SpanID: a.agentSpan,
				Kind:   TraceAgentStart,
				Data:   map[string]any{"model": a.model},
			})
			return nil
		},
		OnLLMStart: func(ctx context.Context, messages []Message) error {
			a.llmSpan = NewID()
			a.tracer.Emit(TraceEvent{
				SpanID:     a.llmSpan,
				ParentSpan: a.agentSpan,
				Kind:       TraceLLMStart,
				Data:       map[string]any{"message_count": len(messages)},
			})
			return nil
		},
		OnLLMEnd: func(ctx context.Context, msg Message, elapsed time.Duration) error {
			a.tracer.Emit(TraceEvent{
				SpanID:     a.llmSpan,
				ParentSpan: a.agentSpan,
				Kind:       TraceLLMEnd,
				DurationMS: elapsed.Milliseconds(),
			})
			return nil
		},
		OnToolStart: func(ctx context.Context, call ToolCall) error {
			span := NewID()
			a.toolSpans[call.ID] = span
			a.tracer.Emit(TraceEvent{
				SpanID:     span,
				ParentSpan: a.llmSpan,
				Kind:       TraceToolStart,
				Data:       map[string]any{"tool": call.Name, "arguments": call.Args},
			})
			return nil
		},
		OnToolEnd: func(ctx context.Context, call ToolCall, result Message, elapsed time.Duration) (*Message, error) {
			span := a.toolSpans[call.ID]
			delete(a.toolSpans, call.ID)
			a.tracer.Emit(TraceEvent{
				SpanID:     span,
				ParentSpan: a.llmSpan,
				Kind:       TraceToolEnd,
				DurationMS: elapsed.Milliseconds(),
				Data: map[string]any{
					"tool":          call.Name,
					"result_length": len(result.Content),
					"is_error":      result.IsError,
				},
			})
			return nil, nil
		},
		OnLoopEnd: func(ctx context.Context, turns int) error {
			a.tracer.Emit(TraceEvent{
				SpanID: a.agentSpan,
				Kind:   TraceAgentEnd,
				Data:   map[string]any{"total_turns": turns},
			})
			return nil
		},
		OnError: func(ctx context.Context, err error) {
			a.tracer.Emit(TraceEvent{
				SpanID:     NewID(),
				ParentSpan: a.agentSpan,
				Kind:       TraceError,
				Data:       map[string]any{"message": err.Error()},
			})
		},
	}
}
