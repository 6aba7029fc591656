// Package openaicompat implements picoagent.Provider for any
// OpenAI-compatible chat completions API: OpenAI, OpenRouter, Groq,
// DeepSeek, Ollama, vLLM, LM Studio, Azure OpenAI, and the rest.
package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	picoagent "github.com/siriusctrl/picoagent"
)

// Provider implements picoagent.Provider over HTTP.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	name    string
}

var _ picoagent.Provider = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithName overrides the provider name reported by Name().
func WithName(name string) Option {
	return func(p *Provider) { p.name = name }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// New creates a provider. baseURL is the API base (e.g.
// "https://api.openai.com/v1"); the /chat/completions path is appended.
func New(apiKey, model, baseURL string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   model,
		baseURL: baseURL,
		client:  &http.Client{},
		name:    "openai",
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the provider name.
func (p *Provider) Name() string { return p.name }

// Complete sends a blocking chat request and returns the assistant message.
func (p *Provider) Complete(ctx context.Context, req picoagent.ChatRequest) (picoagent.Message, error) {
	resp, err := p.send(ctx, buildBody(req, p.model))
	if err != nil {
		return picoagent.Message{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return picoagent.Message{}, p.httpErr(resp)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return picoagent.Message{}, &picoagent.ErrLLM{Provider: p.name, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message == nil {
		return picoagent.Message{}, &picoagent.ErrLLM{Provider: p.name, Message: "response contained no choices"}
	}
	return parseMessage(*parsed.Choices[0].Message), nil
}

// Stream sends a streaming request and returns the event channel. The
// channel carries text_delta events as fragments arrive and a final done
// event with the assembled message, then closes.
func (p *Provider) Stream(ctx context.Context, req picoagent.ChatRequest) (<-chan picoagent.StreamEvent, error) {
	body := buildBody(req, p.model)
	body.Stream = true
	body.StreamOptions = &streamOptions{IncludeUsage: true}

	resp, err := p.send(ctx, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, p.httpErr(resp)
	}

	ch := make(chan picoagent.StreamEvent)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		streamSSE(ctx, resp.Body, ch)
	}()
	return ch, nil
}

func (p *Provider) send(ctx context.Context, body chatBody) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &picoagent.ErrLLM{Provider: p.name, Message: fmt.Sprintf("marshal request: %v", err)}
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &picoagent.ErrLLM{Provider: p.name, Message: fmt.Sprintf("create request: %v", err)}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	return p.client.Do(httpReq)
}

func (p *Provider) httpErr(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return &picoagent.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
}
