package picoagent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
)

// WorkerResult is the terminal outcome of one worker run.
type WorkerResult struct {
	TaskID string
	Status TaskStatus
	Result string
	Err    error
}

// WorkerConfig bundles what RunWorker needs beyond the task directory.
type WorkerConfig struct {
	Tools    []Tool
	Provider Provider
	// BaseContext is the runtime's tool context; the worker runs in a copy
	// scoped to the task directory (cwd and writeRoot both become the task
	// dir).
	BaseContext *ToolContext
	// BuildPrompt assembles the worker system prompt from the loaded task.
	// The composition is external to the core; nil falls back to a minimal
	// prompt naming the working directory and the task.
	BuildPrompt func(t *Task) string
	// Control is the worker's live handle, consulted when classifying an
	// abort (nil is fine for standalone runs).
	Control *Control
	Hooks   *Hooks
	Logger  *slog.Logger
}

// RunWorker executes one task to a terminal state: it reads task.md, marks
// the task running, drives the agent loop with a task-scoped tool context,
// and on every terminal path leaves the frontmatter status terminal and
// result.md written. The exception is a task.md that cannot be read or
// parsed: the run then returns failed without writing result.md or a status.
//
// An ErrAborted escaping the loop is recorded as status aborted when the
// control handle's flag is set (the abort tool recorded the operator's
// intent on disk first; the driver must not overwrite it with failed).
// Every other error is recorded as failed.
func RunWorker(ctx context.Context, taskDir string, cfg WorkerConfig) WorkerResult {
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger
	}

	task, err := LoadTask(taskDir)
	if err != nil {
		return WorkerResult{TaskID: filepath.Base(taskDir), Status: TaskFailed, Err: err}
	}
	if err := task.SetStatus(TaskRunning); err != nil {
		return failWorker(task, cfg.Control, err, logger)
	}
	logger.Info("worker started", "task", task.ID, "name", task.Name)

	tctx := cfg.BaseContext.WorkerScoped(taskDir)

	prompt := ""
	if cfg.BuildPrompt != nil {
		prompt = cfg.BuildPrompt(task)
	} else {
		prompt = fmt.Sprintf("You are a background worker. Your working directory is %s.\n\n# Task: %s\n\n%s",
			taskDir, task.Name, task.Description)
	}

	messages := []Message{UserMessage(task.Instructions)}
	final, err := RunAgentLoop(ctx, &messages, cfg.Tools, cfg.Provider, tctx, prompt, cfg.Hooks)
	if err != nil {
		return failWorker(task, cfg.Control, err, logger)
	}

	result := final.Text()
	if werr := task.WriteResult(result); werr != nil {
		logger.Error("worker result write failed", "task", task.ID, "error", werr)
	}
	if serr := task.SetStatus(TaskCompleted); serr != nil {
		logger.Error("worker status write failed", "task", task.ID, "error", serr)
	}
	logger.Info("worker completed", "task", task.ID, "result_len", len(result))
	return WorkerResult{TaskID: task.ID, Status: TaskCompleted, Result: result}
}

// failWorker records a terminal failure, electing the aborted status when
// the abort flag explains the error.
func failWorker(task *Task, ctl *Control, err error, logger *slog.Logger) WorkerResult {
	status := TaskFailed
	var aborted *ErrAborted
	if errors.As(err, &aborted) && ctl != nil && ctl.Aborted() {
		status = TaskAborted
	}

	msg := "Error: " + err.Error()
	if status == TaskAborted {
		msg = fmt.Sprintf("Error: Task %s was aborted", task.ID)
	}
	if werr := task.WriteResult(msg); werr != nil {
		logger.Error("worker result write failed", "task", task.ID, "error", werr)
	}
	if serr := task.SetStatus(status); serr != nil {
		logger.Error("worker status write failed", "task", task.ID, "error", serr)
	}
	logger.Warn("worker failed", "task", task.ID, "status", string(status), "error", err)
	return WorkerResult{TaskID: task.ID, Status: status, Err: err}
}
