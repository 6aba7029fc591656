package picoagent

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
)

func readTrace(t *testing.T, tr *Tracer) []TraceEvent {
	t.Helper()
	f, err := os.Open(tr.Path())
	if err != nil {
		t.Fatalf("open trace: %v", err)
	}
	defer f.Close()

	var events []TraceEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev TraceEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			t.Fatalf("bad trace line %q: %v", scanner.Text(), err)
		}
		events = append(events, ev)
	}
	return events
}

func TestTraceSpanTree(t *testing.T) {
	dir := t.TempDir()
	tracer := NewTracer(dir)

	provider := &mockProvider{responses: []Message{
		AssistantBlocks(
			ToolCallBlock("1", "s", nil),
			ToolCallBlock("2", "s", nil),
		),
		AssistantText("Done"),
	}}
	messages := []Message{UserMessage("go")}
	if _, err := RunAgentLoop(context.Background(), &messages, []Tool{staticTool("s", "ok")}, provider, &ToolContext{}, "", tracer.Hooks("test-model")); err != nil {
		t.Fatalf("loop failed: %v", err)
	}
	if err := tracer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	events := readTrace(t, tracer)

	counts := map[TraceKind]int{}
	llmSpans := map[string]bool{}
	var agentSpan string
	for _, ev := range events {
		counts[ev.Kind]++
		if ev.TraceID != tracer.TraceID() {
			t.Errorf("event trace id %q != %q", ev.TraceID, tracer.TraceID())
		}
		switch ev.Kind {
		case TraceAgentStart:
			agentSpan = ev.SpanID
			if ev.ParentSpan != "" {
				t.Error("agent_start has a parent")
			}
		case TraceLLMStart:
			llmSpans[ev.SpanID] = true
			if ev.ParentSpan != agentSpan {
				t.Error("llm_start not parented under the agent span")
			}
		case TraceToolStart:
			if !llmSpans[ev.ParentSpan] {
				t.Error("tool_start not parented under an llm span")
			}
		}
	}

	// 2 turns, 2 tool calls.
	want := map[TraceKind]int{
		TraceAgentStart: 1, TraceAgentEnd: 1,
		TraceLLMStart: 2, TraceLLMEnd: 2,
		TraceToolStart: 2, TraceToolEnd: 2,
	}
	for kind, n := range want {
		if counts[kind] != n {
			t.Errorf("%s count = %d, want %d", kind, counts[kind], n)
		}
	}
	if events[len(events)-1].Kind != TraceAgentEnd {
		t.Errorf("last event = %s, want agent_end", events[len(events)-1].Kind)
	}
}

func TestTraceErrorEvent(t *testing.T) {
	dir := t.TempDir()
	tracer := NewTracer(dir)
	provider := &mockProvider{err: &ErrLLM{Provider: "mock", Message: "down"}}

	messages := []Message{UserMessage("go")}
	if _, err := RunAgentLoop(context.Background(), &messages, nil, provider, &ToolContext{}, "", tracer.Hooks("m")); err == nil {
		t.Fatal("expected provider error")
	}
	_ = tracer.Close()

	events := readTrace(t, tracer)
	found := false
	for _, ev := range events {
		if ev.Kind == TraceError {
			found = true
			if ev.Data["message"] == "" {
				t.Error("error event missing message")
			}
		}
	}
	if !found {
		t.Error("no error event emitted")
	}
}

func TestTraceWriteFailureSwallowed(t *testing.T) {
	// A trace dir that cannot be created must not disturb the loop.
	tracer := NewTracer("/dev/null/not-a-dir")
	provider := &mockProvider{responses: []Message{AssistantText("ok")}}
	messages := []Message{UserMessage("go")}
	if _, err := RunAgentLoop(context.Background(), &messages, nil, provider, &ToolContext{}, "", tracer.Hooks("m")); err != nil {
		t.Fatalf("loop failed: %v", err)
	}
}
