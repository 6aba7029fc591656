package openaicompat

import (
	"encoding/json"

	picoagent "github.com/siriusctrl/picoagent"
)

// --- OpenAI chat completions wire types (request) ---

type chatBody struct {
	Model         string         `json:"model"`
	Messages      []wireMessage  `json:"messages"`
	Tools         []wireTool     `json:"tools,omitempty"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content,omitempty"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type wireTool struct {
	Type     string      `json:"type"`
	Function wireToolDef `json:"function"`
}

type wireToolDef struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// --- wire types (response) ---

type chatResponse struct {
	Choices []choice `json:"choices"`
}

type choice struct {
	Message *respMessage `json:"message,omitempty"`
	Delta   *respDelta   `json:"delta,omitempty"`
}

type respMessage struct {
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type respDelta struct {
	Content   string          `json:"content"`
	ToolCalls []deltaToolCall `json:"tool_calls"`
}

type deltaToolCall struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Function wireFunction `json:"function"`
}

// buildBody converts a core request to the wire format. The system prompt
// becomes the leading system message; assistant block lists flatten to
// content plus tool_calls; tool results become role-tool messages.
func buildBody(req picoagent.ChatRequest, model string) chatBody {
	body := chatBody{Model: model}
	if req.System != "" {
		body.Messages = append(body.Messages, wireMessage{Role: "system", Content: req.System})
	}
	for _, m := range req.Messages {
		switch m.Role {
		case picoagent.RoleAssistant:
			wm := wireMessage{Role: "assistant", Content: m.Text()}
			for _, call := range m.ToolCalls() {
				wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
					ID:   call.ID,
					Type: "function",
					Function: wireFunction{
						Name:      call.Name,
						Arguments: call.ArgsJSON(),
					},
				})
			}
			body.Messages = append(body.Messages, wm)
		case picoagent.RoleTool:
			body.Messages = append(body.Messages, wireMessage{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		default:
			body.Messages = append(body.Messages, wireMessage{Role: "user", Content: m.Content})
		}
	}
	for _, t := range req.Tools {
		body.Tools = append(body.Tools, wireTool{
			Type: "function",
			Function: wireToolDef{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return body
}

// parseMessage converts a response message back to the core form.
func parseMessage(rm respMessage) picoagent.Message {
	var blocks []picoagent.ContentBlock
	if rm.Content != "" {
		blocks = append(blocks, picoagent.TextBlock(rm.Content))
	}
	for _, tc := range rm.ToolCalls {
		blocks = append(blocks, picoagent.ToolCallBlock(tc.ID, tc.Function.Name, parseArgs(tc.Function.Arguments)))
	}
	return picoagent.Message{Role: picoagent.RoleAssistant, Blocks: blocks}
}

// parseArgs decodes a tool-call argument string; malformed JSON yields an
// empty map so the schema validator reports the missing fields instead of
// the loop crashing.
func parseArgs(raw string) map[string]any {
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}
	}
	return args
}
