package openaicompat

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"

	picoagent "github.com/siriusctrl/picoagent"
)

// streamSSE reads an SSE stream from body and emits events on ch: one
// text_delta per content fragment, tool_start when a tool call's id and
// name are first known, and a final done event carrying the assembled
// assistant message. The caller owns ch and closes it afterwards.
//
// SSE format expected:
//
//	data: {"id":"...","choices":[...]}\n
//	data: [DONE]\n
func streamSSE(ctx context.Context, body io.Reader, ch chan<- picoagent.StreamEvent) {
	scanner := bufio.NewScanner(body)
	// Increase buffer for large SSE payloads.
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var fullContent strings.Builder

	// Tool calls stream incrementally: each chunk carries an index, and
	// arguments arrive as string fragments.
	type partialToolCall struct {
		ID        string
		Name      string
		Args      strings.Builder
		announced bool
	}
	var toolCalls []*partialToolCall

	send := func(ev picoagent.StreamEvent) bool {
		select {
		case ch <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			break
		}

		var chunk chatResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip malformed chunks.
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
			continue
		}
		delta := chunk.Choices[0].Delta

		if delta.Content != "" {
			fullContent.WriteString(delta.Content)
			if !send(picoagent.StreamEvent{Type: picoagent.EventTextDelta, Text: delta.Content}) {
				return
			}
		}

		for _, tc := range delta.ToolCalls {
			idx := tc.Index
			for len(toolCalls) <= idx {
				toolCalls = append(toolCalls, &partialToolCall{})
			}
			p := toolCalls[idx]
			if tc.ID != "" {
				p.ID = tc.ID
			}
			if tc.Function.Name != "" {
				p.Name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				p.Args.WriteString(tc.Function.Arguments)
			}
			if !p.announced && p.ID != "" && p.Name != "" {
				p.announced = true
				if !send(picoagent.StreamEvent{
					Type:     picoagent.EventToolStart,
					ToolCall: &picoagent.ToolCall{ID: p.ID, Name: p.Name},
				}) {
					return
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		send(picoagent.StreamEvent{Type: picoagent.EventError, Err: err})
		return
	}

	var blocks []picoagent.ContentBlock
	if fullContent.Len() > 0 {
		blocks = append(blocks, picoagent.TextBlock(fullContent.String()))
	}
	for _, tc := range toolCalls {
		blocks = append(blocks, picoagent.ToolCallBlock(tc.ID, tc.Name, parseArgs(tc.Args.String())))
	}
	final := picoagent.Message{Role: picoagent.RoleAssistant, Blocks: blocks}
	send(picoagent.StreamEvent{Type: picoagent.EventDone, Message: &final})
}
