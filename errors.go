package picoagent

import (
	"errors"
	"fmt"
)

// ErrLLM reports a provider-level failure. Fatal to the loop that hit it.
type ErrLLM struct {
	Provider string
	Message  string
}

func (e *ErrLLM) Error() string {
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// ErrHTTP reports a non-2xx response from a provider endpoint.
type ErrHTTP struct {
	Status int
	Body   string
}

func (e *ErrHTTP) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// ErrAborted is raised by the worker-control hook when a worker's abort flag
// is set. It propagates out of the agent loop; the worker driver catches it
// and records the task as aborted.
type ErrAborted struct {
	TaskID string
}

func (e *ErrAborted) Error() string {
	return fmt.Sprintf("task %s aborted", e.TaskID)
}

// ErrStreamEnded reports that a provider stream closed without delivering a
// final done event. Treated identically to a provider error.
var ErrStreamEnded = errors.New("stream ended without a final message")
