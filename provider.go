package picoagent

import "context"

// Provider abstracts the LLM backend.
type Provider interface {
	// Complete sends a request and returns the assistant's full message.
	Complete(ctx context.Context, req ChatRequest) (Message, error)
	// Stream sends a request and returns a channel of stream events. The
	// channel is closed when the stream ends; a well-behaved provider sends
	// a final done event carrying the assembled assistant message.
	Stream(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error)
	// Name returns the provider name (e.g. "openai", "anthropic").
	Name() string
}
