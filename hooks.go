package picoagent

import (
	"context"
	"time"
)

// Hooks is a set of optional lifecycle callbacks observed by RunAgentLoop.
// Every field may be nil. Adapters (tracing, compaction, worker control,
// streaming) are built as Hooks values and folded together with
// CombineHooks; the loop itself stays ignorant of what is installed.
//
// Error semantics: a non-nil error returned from any hook aborts the loop
// the same way a provider error does (OnError fires, the error propagates
// to the caller). OnToolEnd may additionally return a replacement result
// message; a nil replacement keeps the current result.
type Hooks struct {
	// OnLoopStart fires once, before the first provider call.
	OnLoopStart func(ctx context.Context) error
	// OnLoopEnd fires once, after the loop exits normally.
	OnLoopEnd func(ctx context.Context, turns int) error
	// OnLLMStart fires before each provider call.
	OnLLMStart func(ctx context.Context, messages []Message) error
	// OnLLMEnd fires after each provider call returns.
	OnLLMEnd func(ctx context.Context, msg Message, elapsed time.Duration) error
	// OnToolStart fires before each tool execution.
	OnToolStart func(ctx context.Context, call ToolCall) error
	// OnToolEnd fires after each tool execution. Returning a non-nil
	// message replaces the result for subsequent hooks and for the
	// message appended to history.
	OnToolEnd func(ctx context.Context, call ToolCall, result Message, elapsed time.Duration) (*Message, error)
	// OnTurnEnd fires after all tool results of a turn are collected,
	// before the next provider call. The messages slice may be mutated.
	OnTurnEnd func(ctx context.Context, messages *[]Message) error
	// OnTextDelta fires for each streamed text fragment. Its mere presence
	// switches the loop to the streaming provider path. Implementations
	// must not block: deltas are delivered synchronously from the stream
	// consumer.
	OnTextDelta func(text string)
	// OnError fires on any error that aborts the loop, before the error
	// propagates. Implementations must not panic; the original error is
	// always the one returned to the caller.
	OnError func(ctx context.Context, err error)
}

// HasTextDelta reports whether a text-delta handler is installed. The loop
// uses this to pick the streaming provider path.
func (h *Hooks) HasTextDelta() bool {
	return h != nil && h.OnTextDelta != nil
}

// CombineHooks folds several hook-sets into one. Hooks run sequentially in
// argument order; the first error stops the chain. OnToolEnd threads the
// (possibly replaced) result from each handler into the next, and the final
// replacement wins. Nil sets are skipped.
func CombineHooks(sets ...*Hooks) *Hooks {
	var active []*Hooks
	for _, s := range sets {
		if s != nil {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return &Hooks{}
	}
	if len(active) == 1 {
		return active[0]
	}

	combined := &Hooks{}

	combined.OnLoopStart = func(ctx context.Context) error {
		for _, h := range active {
			if h.OnLoopStart != nil {
				if err := h.OnLoopStart(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	}
	combined.OnLoopEnd = func(ctx context.Context, turns int) error {
		for _, h := range active {
			if h.OnLoopEnd != nil {
				if err := h.OnLoopEnd(ctx, turns); err != nil {
					return err
				}
			}
		}
		return nil
	}
	combined.OnLLMStart = func(ctx context.Context, messages []Message) error {
		for _, h := range active {
			if h.OnLLMStart != nil {
				if err := h.OnLLMStart(ctx, messages); err != nil {
					return err
				}
			}
		}
		return nil
	}
	combined.OnLLMEnd = func(ctx context.Context, msg Message, elapsed time.Duration) error {
		for _, h := range active {
			if h.OnLLMEnd != nil {
				if err := h.OnLLMEnd(ctx, msg, elapsed); err != nil {
					return err
				}
			}
		}
		return nil
	}
	combined.OnToolStart = func(ctx context.Context, call ToolCall) error {
		for _, h := range active {
			if h.OnToolStart != nil {
				if err := h.OnToolStart(ctx, call); err != nil {
					return err
				}
			}
		}
		return nil
	}
	combined.OnToolEnd = func(ctx context.Context, call ToolCall, result Message, elapsed time.Duration) (*Message, error) {
		var replaced *Message
		for _, h := range active {
			if h.OnToolEnd == nil {
				continue
			}
			r, err := h.OnToolEnd(ctx, call, result, elapsed)
			if err != nil {
				return replaced, err
			}
			if r != nil {
				result = *r
				replaced = r
			}
		}
		return replaced, nil
	}
	combined.OnTurnEnd = func(ctx context.Context, messages *[]Message) error {
		for _, h := range active {
			if h.OnTurnEnd != nil {
				if err := h.OnTurnEnd(ctx, messages); err != nil {
					return err
				}
			}
		}
		return nil
	}
	// OnTextDelta handlers run synchronously in installation order. The
	// combined field stays nil when no member has one so HasTextDelta
	// remains an accurate streaming probe.
	var deltaHandlers []func(string)
	for _, h := range active {
		if h.OnTextDelta != nil {
			deltaHandlers = append(deltaHandlers, h.OnTextDelta)
		}
	}
	if len(deltaHandlers) > 0 {
		combined.OnTextDelta = func(text string) {
			for _, fn := range deltaHandlers {
				fn(text)
			}
		}
	}
	combined.OnError = func(ctx context.Context, err error) {
		for _, h := range active {
			if h.OnError != nil {
				h.OnError(ctx, err)
			}
		}
	}

	return combined
}

// --- nil-safe dispatch helpers used by the loop ---

func (h *Hooks) loopStart(ctx context.Context) error {
	if h == nil || h.OnLoopStart == nil {
		return nil
	}
	return h.OnLoopStart(ctx)
}

func (h *Hooks) loopEnd(ctx context.Context, turns int) error {
	if h == nil || h.OnLoopEnd == nil {
		return nil
	}
	return h.OnLoopEnd(ctx, turns)
}

func (h *Hooks) llmStart(ctx context.Context, messages []Message) error {
	if h == nil || h.OnLLMStart == nil {
		return nil
	}
	return h.OnLLMStart(ctx, messages)
}

func (h *Hooks) llmEnd(ctx context.Context, msg Message, elapsed time.Duration) error {
	if h == nil || h.OnLLMEnd == nil {
		return nil
	}
	return h.OnLLMEnd(ctx, msg, elapsed)
}

func (h *Hooks) toolStart(ctx context.Context, call ToolCall) error {
	if h == nil || h.OnToolStart == nil {
		return nil
	}
	return h.OnToolStart(ctx, call)
}

func (h *Hooks) toolEnd(ctx context.Context, call ToolCall, result Message, elapsed time.Duration) (*Message, error) {
	if h == nil || h.OnToolEnd == nil {
		return nil, nil
	}
	return h.OnToolEnd(ctx, call, result, elapsed)
}

func (h *Hooks) turnEnd(ctx context.Context, messages *[]Message) error {
	if h == nil || h.OnTurnEnd == nil {
		return nil
	}
	return h.OnTurnEnd(ctx, messages)
}

func (h *Hooks) textDelta(text string) {
	if h == nil || h.OnTextDelta == nil {
		return
	}
	h.OnTextDelta(text)
}

func (h *Hooks) fireError(ctx context.Context, err error) {
	if h == nil || h.OnError == nil {
		return
	}
	h.OnError(ctx, err)
}
