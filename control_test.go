package picoagent

import (
	"context"
	"errors"
	"testing"
)

func TestControlAbortRaisesOnToolEnd(t *testing.T) {
	ctl := NewControl()
	hooks := ControlHooks("t_001", ctl)

	// Before abort the hook returns normally.
	if _, err := hooks.OnToolEnd(context.Background(), ToolCall{ID: "1"}, ToolResultMessage("1", "ok", false), 0); err != nil {
		t.Fatalf("unexpected error before abort: %v", err)
	}

	ctl.Abort()
	_, err := hooks.OnToolEnd(context.Background(), ToolCall{ID: "2"}, ToolResultMessage("2", "ok", false), 0)
	var aborted *ErrAborted
	if !errors.As(err, &aborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if aborted.TaskID != "t_001" {
		t.Errorf("task id = %q", aborted.TaskID)
	}
}

func TestControlSteerQueueFIFO(t *testing.T) {
	ctl := NewControl()
	hooks := ControlHooks("t_001", ctl)

	ctl.Steer("go left")
	ctl.Steer("go right")

	var messages []Message
	if err := hooks.OnTurnEnd(context.Background(), &messages); err != nil {
		t.Fatalf("turn end: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(messages))
	}
	if messages[0].Content != "[Steer] go left" || messages[0].Role != RoleUser {
		t.Errorf("messages[0] = %+v", messages[0])
	}
	if messages[1].Content != "[Steer] go right" {
		t.Errorf("messages[1] = %+v", messages[1])
	}

	// Queue is drained.
	if err := hooks.OnTurnEnd(context.Background(), &messages); err != nil {
		t.Fatal(err)
	}
	if len(messages) != 2 {
		t.Error("drained steers delivered twice")
	}
}

func TestControlSteerDeliveredMidLoop(t *testing.T) {
	ctl := NewControl()
	provider := &mockProvider{responses: []Message{
		AssistantBlocks(ToolCallBlock("1", "s", nil)),
		AssistantText("Done"),
	}}
	ctl.Steer("change course")

	messages := []Message{UserMessage("go")}
	if _, err := RunAgentLoop(context.Background(), &messages, []Tool{staticTool("s", "ok")}, provider, &ToolContext{}, "", ControlHooks("t_001", ctl)); err != nil {
		t.Fatalf("loop failed: %v", err)
	}

	// The steer lands after the first turn's tool results, before the
	// second provider call.
	found := false
	for _, m := range messages {
		if m.Role == RoleUser && m.Content == "[Steer] change course" {
			found = true
		}
	}
	if !found {
		t.Errorf("steer message not delivered: %+v", messages)
	}
	// The second provider request must include it.
	lastReq := provider.requests[len(provider.requests)-1]
	sawInRequest := false
	for _, m := range lastReq.Messages {
		if m.Content == "[Steer] change course" {
			sawInRequest = true
		}
	}
	if !sawInRequest {
		t.Error("steer not visible to the next provider call")
	}
}

func TestControlAbortStopsLoop(t *testing.T) {
	ctl := NewControl()
	provider := &mockProvider{responses: []Message{
		AssistantBlocks(ToolCallBlock("1", "s", nil)),
		AssistantText("never reached"),
	}}
	ctl.Abort()

	messages := []Message{UserMessage("go")}
	_, err := RunAgentLoop(context.Background(), &messages, []Tool{staticTool("s", "ok")}, provider, &ToolContext{}, "", ControlHooks("t_009", ctl))
	var aborted *ErrAborted
	if !errors.As(err, &aborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if provider.completeCalls != 1 {
		t.Errorf("provider called %d times after abort, want 1", provider.completeCalls)
	}
}
