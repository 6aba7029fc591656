package picoagent

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
)

// Runtime orchestrates the main agent and its workers. It owns the main
// conversation history, builds the hook stack for each loop invocation,
// tracks live worker control handles, and injects worker completion
// notifications back into the main conversation.
//
// Main-agent loop invocations are serialized: OnUserMessage holds a mutex
// for the whole turn, so a completion notification arriving while the
// operator's turn is in flight queues behind it instead of corrupting the
// history.
type Runtime struct {
	provider    Provider
	mainTools   []Tool
	workerTools []Tool
	baseCtx     *ToolContext

	systemPrompt string
	workerPrompt func(t *Task) string
	traceDir     string
	compaction   CompactionConfig
	store        Store
	threadID     string
	deltaSink    io.Writer
	observe      func(model string) *Hooks
	model        string
	guard        *SteerGuard
	logger       *slog.Logger

	mainMu  sync.Mutex
	history []Message

	ctlMu    sync.Mutex
	controls map[string]*Control

	workers sync.WaitGroup
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithSystemPrompt sets the main agent's system prompt.
func WithSystemPrompt(prompt string) RuntimeOption {
	return func(r *Runtime) { r.systemPrompt = prompt }
}

// WithWorkerPrompt sets the worker system-prompt builder (see skills
// package for the standard composition).
func WithWorkerPrompt(build func(t *Task) string) RuntimeOption {
	return func(r *Runtime) { r.workerPrompt = build }
}

// WithTraceDir enables JSONL tracing: every loop invocation gets a fresh
// trace file under dir.
func WithTraceDir(dir string) RuntimeOption {
	return func(r *Runtime) { r.traceDir = dir }
}

// WithCompaction overrides the default compaction configuration.
func WithCompaction(cfg CompactionConfig) RuntimeOption {
	return func(r *Runtime) { r.compaction = cfg }
}

// WithStore enables best-effort conversation and task-event archival.
func WithStore(s Store) RuntimeOption {
	return func(r *Runtime) { r.store = s }
}

// WithDeltaSink sets the writer that receives text deltas of
// worker-completion notification turns. Without a sink those turns run
// non-streaming.
func WithDeltaSink(w io.Writer) RuntimeOption {
	return func(r *Runtime) { r.deltaSink = w }
}

// WithObserver installs an extra per-invocation hook factory (see
// observer.LoopHooks for the OTEL adapter).
func WithObserver(factory func(model string) *Hooks) RuntimeOption {
	return func(r *Runtime) { r.observe = factory }
}

// WithModel records the model name stamped into trace events.
func WithModel(model string) RuntimeOption {
	return func(r *Runtime) { r.model = model }
}

// WithRuntimeLogger sets the structured logger.
func WithRuntimeLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// NewRuntime assembles a Runtime and late-binds the tool-context callbacks
// to it: tools hand task-lifecycle events back through the context, and the
// context's slots are populated here, after the Runtime exists, breaking
// the tools-context-runtime ownership cycle.
func NewRuntime(provider Provider, mainTools, workerTools []Tool, baseCtx *ToolContext, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		provider:    provider,
		mainTools:   mainTools,
		workerTools: workerTools,
		baseCtx:     baseCtx,
		controls:    map[string]*Control{},
		threadID:    NewID(),
		guard:       NewSteerGuard(),
		logger:      nopLogger,
	}
	for _, o := range opts {
		o(r)
	}
	r.compaction = r.compaction.withDefaults()

	baseCtx.OnTaskCreated = r.SpawnWorker
	baseCtx.OnSteer = r.steer
	baseCtx.OnAbort = r.abort

	if r.store != nil {
		if err := r.store.CreateThread(context.Background(), Thread{ID: r.threadID, Title: "main", CreatedAt: NowUnix()}); err != nil {
			r.logger.Warn("thread create failed", "error", err)
		}
	}
	return r
}

// History returns a snapshot of the main conversation.
func (r *Runtime) History() []Message {
	r.mainMu.Lock()
	defer r.mainMu.Unlock()
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}

// OnUserMessage appends the operator's utterance to the main history and
// runs the agent loop over it. When onDelta is non-nil the loop streams and
// routes text fragments to it. Returns the final assistant message.
func (r *Runtime) OnUserMessage(ctx context.Context, text string, onDelta func(string)) (Message, error) {
	r.mainMu.Lock()
	defer r.mainMu.Unlock()

	r.history = append(r.history, UserMessage(text))
	r.archiveMessage(ctx, RoleUser, text)

	stack := []*Hooks{NewCompactor(r.provider, r.compaction, CompactorLogger(r.logger)).Hooks()}
	var tracer *Tracer
	if r.traceDir != "" {
		tracer = NewTracer(r.traceDir, TracerLogger(r.logger))
		stack = append(stack, tracer.Hooks(r.model))
	}
	if r.observe != nil {
		stack = append(stack, r.observe(r.model))
	}
	if onDelta != nil {
		stack = append(stack, &Hooks{OnTextDelta: onDelta})
	}
	hooks := CombineHooks(stack...)

	final, err := RunAgentLoop(ctx, &r.history, r.mainTools, r.provider, r.baseCtx, r.systemPrompt, hooks)
	if tracer != nil {
		if cerr := tracer.Close(); cerr != nil {
			r.logger.Debug("trace close failed", "error", cerr)
		}
	}
	if err != nil {
		return Message{}, err
	}
	r.archiveMessage(ctx, RoleAssistant, final.Text())
	return final, nil
}

// GetControl returns the live control handle for a task id, or nil.
func (r *Runtime) GetControl(taskID string) *Control {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()
	return r.controls[taskID]
}

// SpawnWorker starts the worker for a task directory as a fire-and-forget
// background goroutine. On completion the control handle is removed, the
// on-disk terminal state is already written (the driver guarantees it), and
// a notification describing the outcome is injected into the main
// conversation as a fresh user turn.
func (r *Runtime) SpawnWorker(taskDir string) {
	taskID := filepath.Base(taskDir)
	ctl := NewControl()

	r.ctlMu.Lock()
	r.controls[taskID] = ctl
	r.ctlMu.Unlock()

	r.logger.Info("worker spawned", "task", taskID, "dir", taskDir)
	r.workers.Add(1)

	go func() {
		var notification string
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("worker panic", "task", taskID, "panic", fmt.Sprintf("%v", p))
				notification = fmt.Sprintf("[Task %s failed unexpectedly: %v]", taskID, p)
			}
			r.removeControl(taskID)
			r.notify(taskID, notification)
			r.workers.Done()
		}()

		hooks := CombineHooks(r.workerHooks(taskID, ctl)...)
		res := RunWorker(context.Background(), taskDir, WorkerConfig{
			Tools:       r.workerTools,
			Provider:    r.provider,
			BaseContext: r.baseCtx,
			BuildPrompt: r.workerPrompt,
			Control:     ctl,
			Hooks:       hooks,
			Logger:      r.logger,
		})

		r.recordTaskEvent(taskID, res)
		if res.Err != nil {
			notification = fmt.Sprintf("[Task %s completed. Status: %s]\nError: %v", taskID, res.Status, res.Err)
		} else {
			notification = fmt.Sprintf("[Task %s completed. Status: %s]\nResult: %s", taskID, res.Status, res.Result)
		}
	}()
}

// Wait blocks until every spawned worker has finished and its notification
// turn has completed. Used on shutdown and in tests.
func (r *Runtime) Wait() {
	r.workers.Wait()
}

func (r *Runtime) workerHooks(taskID string, ctl *Control) []*Hooks {
	stack := []*Hooks{
		ControlHooks(taskID, ctl),
		NewCompactor(r.provider, r.compaction, CompactorLogger(r.logger)).Hooks(),
	}
	if r.traceDir != "" {
		stack = append(stack, NewTracer(r.traceDir, TracerLogger(r.logger)).Hooks(r.model))
	}
	if r.observe != nil {
		stack = append(stack, r.observe(r.model))
	}
	return stack
}

// notify injects a worker's completion into the main conversation. The
// driver wrote status and result.md before returning, so the main agent
// always observes consistent on-disk state. Failures are logged only.
func (r *Runtime) notify(taskID, notification string) {
	if notification == "" {
		return
	}
	var onDelta func(string)
	if r.deltaSink != nil {
		sink := r.deltaSink
		onDelta = func(text string) {
			_, _ = io.WriteString(sink, text)
		}
	}
	if _, err := r.OnUserMessage(context.Background(), notification, onDelta); err != nil {
		r.logger.Error("completion notification turn failed", "task", taskID, "error", err)
	}
}

func (r *Runtime) steer(taskID, msg string) {
	ctl := r.GetControl(taskID)
	if ctl == nil {
		r.logger.Warn("steer for unknown task", "task", taskID)
		return
	}
	screened, flagged := r.guard.Screen(msg)
	if flagged {
		r.logger.Warn("steer message flagged by guard", "task", taskID)
	}
	ctl.Steer(screened)
}

func (r *Runtime) abort(taskID string) {
	ctl := r.GetControl(taskID)
	if ctl == nil {
		r.logger.Warn("abort for unknown task", "task", taskID)
		return
	}
	ctl.Abort()
}

func (r *Runtime) removeControl(taskID string) {
	r.ctlMu.Lock()
	defer r.ctlMu.Unlock()
	delete(r.controls, taskID)
}

func (r *Runtime) archiveMessage(ctx context.Context, role, content string) {
	if r.store == nil || content == "" {
		return
	}
	err := r.store.AppendMessage(ctx, StoredMessage{
		ID:        NewID(),
		ThreadID:  r.threadID,
		Role:      role,
		Content:   content,
		CreatedAt: NowUnix(),
	})
	if err != nil {
		r.logger.Warn("message archive failed", "error", err)
	}
}

func (r *Runtime) recordTaskEvent(taskID string, res WorkerResult) {
	if r.store == nil {
		return
	}
	detail := res.Result
	if res.Err != nil {
		detail = res.Err.Error()
	}
	err := r.store.RecordTaskEvent(context.Background(), TaskEvent{
		ID:        NewID(),
		TaskID:    taskID,
		Status:    string(res.Status),
		Detail:    detail,
		CreatedAt: NowUnix(),
	})
	if err != nil {
		r.logger.Warn("task event archive failed", "task", taskID, "error", err)
	}
}
