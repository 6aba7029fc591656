package picoagent

import (
	"context"
	"sync"
	"time"
)

// Control is the in-memory handle for one live worker: an abort flag plus a
// FIFO queue of steer messages. The steer/abort tools write it from the
// main agent's goroutine; the worker-control hook reads it from the
// worker's goroutine. All methods are safe for concurrent use.
type Control struct {
	mu      sync.Mutex
	aborted bool
	steers  []string
}

// NewControl creates an empty handle.
func NewControl() *Control {
	return &Control{}
}

// Abort sets the abort flag. The worker observes it at its next tool-end
// boundary; an in-flight tool or provider call is not interrupted.
func (c *Control) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.aborted = true
}

// Aborted reports whether Abort has been called.
func (c *Control) Aborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// Steer enqueues a steering message for delivery at the worker's next turn
// boundary.
func (c *Control) Steer(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steers = append(c.steers, msg)
}

// DrainSteers removes and returns all queued steers in FIFO order.
func (c *Control) DrainSteers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	drained := c.steers
	c.steers = nil
	return drained
}

// ControlHooks returns the worker-control adapter for one worker: the abort
// flag is checked after every tool execution (raising ErrAborted, which
// propagates out of the loop), and queued steers are delivered as user
// messages at each turn boundary before the next provider call.
func ControlHooks(taskID string, ctl *Control) *Hooks {
	return &Hooks{
		OnToolEnd: func(ctx context.Context, call ToolCall, result Message, elapsed time.Duration) (*Message, error) {
			if ctl.Aborted() {
				return nil, &ErrAborted{TaskID: taskID}
			}
			return nil, nil
		},
		OnTurnEnd: func(ctx context.Context, messages *[]Message) error {
			for _, s := range ctl.DrainSteers() {
				*messages = append(*messages, UserMessage("[Steer] "+s))
			}
			return nil
		},
	}
}
