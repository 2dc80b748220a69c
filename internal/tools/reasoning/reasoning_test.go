package reasoning

import (
	"context"
	"strings"
	"testing"
)

func TestTerminateReturnsOutput(t *testing.T) {
	tool := Terminate()
	got, err := tool.Fn(context.Background(), map[string]any{"output": "all done"})
	if err != nil {
		t.Fatalf("Fn() error: %v", err)
	}
	if got != "all done" {
		t.Errorf("Fn() = %v, want %q", got, "all done")
	}

	if _, err := tool.Fn(context.Background(), map[string]any{"output": ""}); err == nil {
		t.Error("empty output accepted")
	}
}

func TestThinkEchoesThought(t *testing.T) {
	tool := Think()
	got, err := tool.Fn(context.Background(), map[string]any{"thought": "try the API first"})
	if err != nil {
		t.Fatalf("Fn() error: %v", err)
	}
	if got != "Noted: try the API first" {
		t.Errorf("Fn() = %v", got)
	}
}

func TestPlanNumbersSteps(t *testing.T) {
	tool := Plan()
	got, err := tool.Fn(context.Background(), map[string]any{
		"steps": []any{"search", "read", "answer"},
	})
	if err != nil {
		t.Fatalf("Fn() error: %v", err)
	}
	out := got.(string)
	for _, want := range []string{"1. search", "2. read", "3. answer"} {
		if !strings.Contains(out, want) {
			t.Errorf("plan missing %q:\n%s", want, out)
		}
	}

	if _, err := tool.Fn(context.Background(), map[string]any{"steps": []any{}}); err == nil {
		t.Error("empty step list accepted")
	}
}

func TestStatefulToolsBypassCacheAndRetry(t *testing.T) {
	// terminate ends the run and plan supersedes earlier plans; both must
	// carry the side-effect flag so the dispatcher never caches or retries
	// them.
	for _, tool := range []struct {
		name string
		side bool
	}{
		{Terminate().Name, Terminate().SideEffect},
		{Plan().Name, Plan().SideEffect},
	} {
		if !tool.side {
			t.Errorf("%s is not flagged side-effectful", tool.name)
		}
	}
	if Think().SideEffect {
		t.Error("think is a pure scratchpad and should stay cacheable")
	}
}
