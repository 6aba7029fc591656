package picoagent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Tool-result truncation bounds. Results longer than maxToolResultLen keep
// the first truncHead and last truncTail characters around a marker noting
// how much was dropped. This bounds history growth without hiding either
// the start or the end of large outputs.
const (
	maxToolResultLen = 32_000
	truncHead        = 24_000
	truncTail        = 6_000
)

// TruncateResult applies the head-plus-tail truncation rule. Contents at or
// under maxToolResultLen pass through unchanged.
func TruncateResult(s string) string {
	if len(s) <= maxToolResultLen {
		return s
	}
	dropped := len(s) - (truncHead + truncTail)
	marker := fmt.Sprintf("\n... [%d chars truncated] ...\n", dropped)
	return s[:truncHead] + marker + s[len(s)-truncTail:]
}

// RunAgentLoop drives one agent conversation: it repeatedly asks the
// provider for a turn, executes the tool calls the assistant requested, and
// feeds the results back until the provider returns a turn with no tool
// calls. That final assistant message is returned.
//
// The messages slice is mutated in place and is the durable conversation
// state; callers needing isolation must clone before calling. Tool calls of
// a turn execute sequentially in order; a tool failure never stops the loop
// (it becomes an error-flagged result handed back to the model). Provider
// errors and hook errors are fatal: OnError fires and the error returns.
//
// When the combined hooks install a text-delta handler the loop uses the
// provider's streaming call and routes fragments to the handler; otherwise
// it uses the blocking call.
func RunAgentLoop(ctx context.Context, messages *[]Message, tools []Tool, provider Provider, tctx *ToolContext, systemPrompt string, hooks *Hooks) (Message, error) {
	defs := Definitions(tools)
	byName := make(map[string]*Tool, len(tools))
	for i := range tools {
		byName[tools[i].Name] = &tools[i]
	}

	fail := func(err error) (Message, error) {
		hooks.fireError(ctx, err)
		return Message{}, err
	}

	turns := 0
	if err := hooks.loopStart(ctx); err != nil {
		return fail(err)
	}

	for {
		turns++
		if err := hooks.llmStart(ctx, *messages); err != nil {
			return fail(err)
		}

		req := ChatRequest{Messages: *messages, Tools: defs, System: systemPrompt}
		start := time.Now()
		var msg Message
		var err error
		if hooks.HasTextDelta() {
			msg, err = streamTurn(ctx, provider, req, hooks)
		} else {
			msg, err = provider.Complete(ctx, req)
		}
		if err != nil {
			return fail(err)
		}

		if err := hooks.llmEnd(ctx, msg, time.Since(start)); err != nil {
			return fail(err)
		}
		*messages = append(*messages, msg)

		calls := msg.ToolCalls()
		if len(calls) == 0 {
			if err := hooks.loopEnd(ctx, turns); err != nil {
				return fail(err)
			}
			return msg, nil
		}

		for _, call := range calls {
			if err := hooks.toolStart(ctx, call); err != nil {
				return fail(err)
			}

			toolStart := time.Now()
			res := executeToolCall(ctx, byName, call, tctx)
			res.Content = TruncateResult(res.Content)
			result := ToolResultMessage(call.ID, res.Content, res.IsError)

			replaced, err := hooks.toolEnd(ctx, call, result, time.Since(toolStart))
			if err != nil {
				return fail(err)
			}
			if replaced != nil {
				result = *replaced
			}
			*messages = append(*messages, result)
		}

		if err := hooks.turnEnd(ctx, messages); err != nil {
			return fail(err)
		}
	}
}

// streamTurn consumes the provider's event stream, routing text deltas to
// the installed handler and capturing the final done message. A stream that
// closes without a done event is a provider failure.
func streamTurn(ctx context.Context, provider Provider, req ChatRequest, hooks *Hooks) (Message, error) {
	events, err := provider.Stream(ctx, req)
	if err != nil {
		return Message{}, err
	}
	var final *Message
	for ev := range events {
		switch ev.Type {
		case EventTextDelta:
			hooks.textDelta(ev.Text)
		case EventDone:
			if ev.Message != nil {
				m := *ev.Message
				final = &m
			}
		default:
			// tool_start, tool_delta, error: tolerated and ignored.
		}
	}
	if final == nil {
		return Message{}, ErrStreamEnded
	}
	return *final, nil
}

// executeToolCall resolves and runs one tool call, converting every failure
// mode into an error-flagged result: unknown tool, schema rejection (Execute
// never runs), an error return, or a panic inside Execute.
func executeToolCall(ctx context.Context, byName map[string]*Tool, call ToolCall, tctx *ToolContext) (res ToolResult) {
	tool, ok := byName[call.Name]
	if !ok {
		return ToolResult{Content: "Tool not found", IsError: true}
	}

	args := call.Args
	if tool.Schema != nil {
		validated, err := tool.Schema.Validate(args)
		if err != nil {
			var se *SchemaError
			if errors.As(err, &se) {
				return ToolResult{Content: "Invalid arguments: " + se.Error(), IsError: true}
			}
			return ToolResult{Content: "Invalid arguments: " + err.Error(), IsError: true}
		}
		args = validated
	}

	defer func() {
		if p := recover(); p != nil {
			res = ToolResult{Content: fmt.Sprintf("Error: tool %q panic: %v", call.Name, p), IsError: true}
		}
	}()
	out, err := tool.Execute(ctx, args, tctx)
	if err != nil {
		return ToolResult{Content: "Error: " + err.Error(), IsError: true}
	}
	return out
}
