package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	picoagent "github.com/siriusctrl/picoagent"
)

func TestCompleteRoundTrip(t *testing.T) {
	var gotAuth string
	var gotBody chatBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"content": "hello",
					"tool_calls": []map[string]any{{
						"id":       "c1",
						"type":     "function",
						"function": map[string]any{"name": "mock", "arguments": `{"arg":"v"}`},
					}},
				},
			}},
		})
	}))
	defer srv.Close()

	p := New("secret", "test-model", srv.URL)
	msg, err := p.Complete(context.Background(), picoagent.ChatRequest{
		Messages: []picoagent.Message{picoagent.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody.Model != "test-model" {
		t.Errorf("model sent = %q", gotBody.Model)
	}
	if msg.Text() != "hello" {
		t.Errorf("text = %q", msg.Text())
	}
	calls := msg.ToolCalls()
	if len(calls) != 1 || calls[0].Name != "mock" || calls[0].Args["arg"] != "v" {
		t.Errorf("calls = %+v", calls)
	}
}

func TestCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New("", "m", srv.URL)
	_, err := p.Complete(context.Background(), picoagent.ChatRequest{})
	var httpErr *picoagent.ErrHTTP
	if !errors.As(err, &httpErr) {
		t.Fatalf("err = %v, want ErrHTTP", err)
	}
	if httpErr.Status != http.StatusTooManyRequests {
		t.Errorf("status = %d", httpErr.Status)
	}
}

func TestStreamRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		chunks := []string{
			`{"choices":[{"delta":{"content":"Hel"}}]}`,
			`{"choices":[{"delta":{"content":"lo"}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"id":"c1","function":{"name":"mock","arguments":"{\"a\":"}}]}}]}`,
			`{"choices":[{"delta":{"tool_calls":[{"index":0,"function":{"arguments":"1}"}}]}}]}`,
		}
		for _, c := range chunks {
			_, _ = w.Write([]byte("data: " + c + "\n\n"))
		}
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := New("", "m", srv.URL)
	events, err := p.Stream(context.Background(), picoagent.ChatRequest{
		Messages: []picoagent.Message{picoagent.UserMessage("hi")},
	})
	if err != nil {
		t.Fatalf("stream: %v", err)
	}

	var deltas []string
	var toolStarts int
	var final *picoagent.Message
	for ev := range events {
		switch ev.Type {
		case picoagent.EventTextDelta:
			deltas = append(deltas, ev.Text)
		case picoagent.EventToolStart:
			toolStarts++
			if ev.ToolCall.Name != "mock" {
				t.Errorf("tool start = %+v", ev.ToolCall)
			}
		case picoagent.EventDone:
			final = ev.Message
		}
	}

	if strings.Join(deltas, "") != "Hello" {
		t.Errorf("deltas = %v", deltas)
	}
	if toolStarts != 1 {
		t.Errorf("tool starts = %d", toolStarts)
	}
	if final == nil {
		t.Fatal("no done event")
	}
	if final.Text() != "Hello" {
		t.Errorf("final text = %q", final.Text())
	}
	calls := final.ToolCalls()
	if len(calls) != 1 || calls[0].ID != "c1" || calls[0].Args["a"] != float64(1) {
		t.Errorf("final calls = %+v", calls)
	}
}

func TestStreamThroughAgentLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(`data: {"choices":[{"delta":{"content":"streamed answer"}}]}` + "\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := New("", "m", srv.URL)
	var deltas strings.Builder
	hooks := &picoagent.Hooks{OnTextDelta: func(text string) { deltas.WriteString(text) }}
	messages := []picoagent.Message{picoagent.UserMessage("hi")}

	final, err := picoagent.RunAgentLoop(context.Background(), &messages, nil, p, &picoagent.ToolContext{}, "", hooks)
	if err != nil {
		t.Fatalf("loop: %v", err)
	}
	if final.Text() != "streamed answer" || deltas.String() != "streamed answer" {
		t.Errorf("final = %q, deltas = %q", final.Text(), deltas.String())
	}
}
