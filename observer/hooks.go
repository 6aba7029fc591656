package observer

import (
	"context"
	"time"

	picoagent "github.com/siriusctrl/picoagent"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// LoopHooks returns a hook adapter that mirrors one loop invocation as an
// OTEL span tree: an agent span covering the whole loop, one llm span per
// turn, one tool span per tool call parented under the turn's llm span.
//
// The adapter holds per-loop span state and is not reusable across loops;
// build a fresh one per invocation (Runtime's WithObserver does).
func LoopHooks(model string) *picoagent.Hooks {
	a := &adapter{
		tracer:    otel.Tracer(scopeName),
		model:     model,
		toolSpans: map[string]trace.Span{},
	}
	return a.hooks()
}

type adapter struct {
	tracer    trace.Tracer
	model     string
	agentCtx  context.Context
	agentSpan trace.Span
	llmCtx    context.Context
	llmSpan   trace.Span
	toolSpans map[string]trace.Span
}

func (a *adapter) hooks() *picoagent.Hooks {
	return &picoagent.Hooks{
		OnLoopStart: func(ctx context.Context) error {
			a.agentCtx, a.agentSpan = a.tracer.Start(ctx, "agent.loop",
				trace.WithAttributes(attribute.String("model", a.model)))
			return nil
		},
		OnLLMStart: func(ctx context.Context, messages []picoagent.Message) error {
			a.llmCtx, a.llmSpan = a.tracer.Start(a.agentCtx, "agent.llm",
				trace.WithAttributes(attribute.Int("message_count", len(messages))))
			return nil
		},
		OnLLMEnd: func(ctx context.Context, msg picoagent.Message, elapsed time.Duration) error {
			if a.llmSpan != nil {
				a.llmSpan.SetAttributes(attribute.Int64("duration_ms", elapsed.Milliseconds()))
				a.llmSpan.End()
			}
			return nil
		},
		OnToolStart: func(ctx context.Context, call picoagent.ToolCall) error {
			parent := a.llmCtx
			if parent == nil {
				parent = a.agentCtx
			}
			_, span := a.tracer.Start(parent, "agent.tool",
				trace.WithAttributes(
					attribute.String("tool", call.Name),
					attribute.String("arguments", call.ArgsJSON())))
			a.toolSpans[call.ID] = span
			return nil
		},
		OnToolEnd: func(ctx context.Context, call picoagent.ToolCall, result picoagent.Message, elapsed time.Duration) (*picoagent.Message, error) {
			if span, ok := a.toolSpans[call.ID]; ok {
				delete(a.toolSpans, call.ID)
				span.SetAttributes(
					attribute.Int("result_length", len(result.Content)),
					attribute.Bool("is_error", result.IsError),
					attribute.Int64("duration_ms", elapsed.Milliseconds()))
				span.End()
			}
			return nil, nil
		},
		OnLoopEnd: func(ctx context.Context, turns int) error {
			if a.agentSpan != nil {
				a.agentSpan.SetAttributes(attribute.Int("total_turns", turns))
				a.agentSpan.End()
			}
			return nil
		},
		OnError: func(ctx context.Context, err error) {
			// Close any spans still open so the tree is not leaked.
			for id, span := range a.toolSpans {
				delete(a.toolSpans, id)
				span.End()
			}
			if a.llmSpan != nil && a.llmSpan.IsRecording() {
				a.llmSpan.End()
			}
			if a.agentSpan != nil {
				a.agentSpan.RecordError(err)
				a.agentSpan.SetStatus(codes.Error, err.Error())
				a.agentSpan.End()
				a.agentSpan = nil
			}
		},
	}
}
