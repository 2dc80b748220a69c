package engine

import (
	"context"
	"time"
)

// Hook observes loop execution. All methods are synchronous and must not
// block for long; heavy consumers should buffer.
type Hook interface {
	OnStepStart(ctx context.Context, step int)
	OnThinking(ctx context.Context, step int)
	OnAssistant(ctx context.Context, content string, calls []ToolCall)
	OnToolStarted(ctx context.Context, call ToolCall)
	OnToolFinished(ctx context.Context, call ToolCall, result *ToolResult)
	OnStreamDelta(ctx context.Context, delta string)
	OnCritic(ctx context.Context, verdict string)
	OnStuck(ctx context.Context, step int)
	OnRetryAttempt(ctx context.Context, attempt int, delay time.Duration, err error)
	OnFinal(ctx context.Context, answer string)
	OnError(ctx context.Context, err error)
}

// NopHook implements Hook with no-ops; embed it to implement a subset.
type NopHook struct{}

func (NopHook) OnStepStart(context.Context, int)                           {}
func (NopHook) OnThinking(context.Context, int)                            {}
func (NopHook) OnAssistant(context.Context, string, []ToolCall)            {}
func (NopHook) OnToolStarted(context.Context, ToolCall)                    {}
func (NopHook) OnToolFinished(context.Context, ToolCall, *ToolResult)      {}
func (NopHook) OnStreamDelta(context.Context, string)                      {}
func (NopHook) OnCritic(context.Context, string)                           {}
func (NopHook) OnStuck(context.Context, int)                               {}
func (NopHook) OnRetryAttempt(context.Context, int, time.Duration, error)  {}
func (NopHook) OnFinal(context.Context, string)                            {}
func (NopHook) OnError(context.Context, error)                             {}

// Hooks fans out to multiple hooks in order.
type Hooks []Hook

func (hs Hooks) OnStepStart(ctx context.Context, step int) {
	for _, h := range hs {
		h.OnStepStart(ctx, step)
	}
}
func (hs Hooks) OnThinking(ctx context.Context, step int) {
	for _, h := range hs {
		h.OnThinking(ctx, step)
	}
}
func (hs Hooks) OnAssistant(ctx context.Context, content string, calls []ToolCall) {
	for _, h := range hs {
		h.OnAssistant(ctx, content, calls)
	}
}
func (hs Hooks) OnToolStarted(ctx context.Context, call ToolCall) {
	for _, h := range hs {
		h.OnToolStarted(ctx, call)
	}
}
func (hs Hooks) OnToolFinished(ctx context.Context, call ToolCall, result *ToolResult) {
	for _, h := range hs {
		h.OnToolFinished(ctx, call, result)
	}
}
func (hs Hooks) OnStreamDelta(ctx context.Context, delta string) {
	for _, h := range hs {
		h.OnStreamDelta(ctx, delta)
	}
}
func (hs Hooks) OnCritic(ctx context.Context, verdict string) {
	for _, h := range hs {
		h.OnCritic(ctx, verdict)
	}
}
func (hs Hooks) OnStuck(ctx context.Context, step int) {
	for _, h := range hs {
		h.OnStuck(ctx, step)
	}
}
func (hs Hooks) OnRetryAttempt(ctx context.Context, attempt int, delay time.Duration, err error) {
	for _, h := range hs {
		h.OnRetryAttempt(ctx, attempt, delay, err)
	}
}
func (hs Hooks) OnFinal(ctx context.Context, answer string) {
	for _, h := range hs {
		h.OnFinal(ctx, answer)
	}
}
func (hs Hooks) OnError(ctx context.Context, err error) {
	for _, h := range hs {
		h.OnError(ctx, err)
	}
}

// Event is one tagged record on the outbound event stream, so a UI layer
// can render progress without polling memory.
type Event struct {
	Kind    string // "status" | "content" | "tool_started" | "tool_finished" | "final"
	Payload any
}

// EventHook bridges loop execution to an Event channel. Sends never block:
// a slow consumer drops events rather than stalling the loop.
type EventHook struct {
	NopHook
	Ch chan<- Event
}

func (h EventHook) send(ev Event) {
	select {
	case h.Ch <- ev:
	default:
	}
}

func (h EventHook) OnThinking(_ context.Context, step int) {
	h.send(Event{Kind: "status", Payload: map[string]any{"state": "thinking", "step": step}})
}
func (h EventHook) OnAssistant(_ context.Context, content string, calls []ToolCall) {
	if content != "" {
		h.send(Event{Kind: "content", Payload: content})
	}
}
func (h EventHook) OnStreamDelta(_ context.Context, delta string) {
	h.send(Event{Kind: "content", Payload: delta})
}
func (h EventHook) OnToolStarted(_ context.Context, call ToolCall) {
	h.send(Event{Kind: "tool_started", Payload: call.Name})
}
func (h EventHook) OnToolFinished(_ context.Context, call ToolCall, result *ToolResult) {
	h.send(Event{Kind: "tool_finished", Payload: map[string]any{
		"tool":  call.Name,
		"error": result.Failed(),
	}})
}
func (h EventHook) OnFinal(_ context.Context, answer string) {
	h.send(Event{Kind: "final", Payload: answer})
}
