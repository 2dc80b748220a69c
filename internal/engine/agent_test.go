package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func testRegistry(t *testing.T) ToolRegistry {
	t.Helper()
	return ToolRegistry{
		TerminateToolName: {
			Name:       TerminateToolName,
			SchemaJSON: `{"type":"object","properties":{"output":{"type":"string"}},"required":["output"]}`,
			Fn: func(ctx context.Context, args map[string]any) (any, error) {
				return args["output"].(string), nil
			},
		},
		"echo": {
			Name:       "echo",
			SchemaJSON: `{"type":"object","properties":{"text":{"type":"string"}}}`,
			Fn: func(ctx context.Context, args map[string]any) (any, error) {
				text, _ := args["text"].(string)
				return "echo: " + text, nil
			},
		},
		browserToolName: {
			Name:       browserToolName,
			SchemaJSON: `{"type":"object","properties":{"action":{"type":"string"},"url":{"type":"string"}},"required":["action"]}`,
			Fn: func(ctx context.Context, args map[string]any) (any, error) {
				return "browser ok", nil
			},
		},
	}
}

func newTestAgent(t *testing.T, llm LLM, cfg AgentConfig) *Agent {
	t.Helper()
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = 10
	}
	return NewAgent(llm, NewMemory(0, 0), NewDispatcher(testRegistry(t)), nil, cfg)
}

func terminateCall(id, answer string) ToolCall {
	return ToolCall{ID: id, Name: TerminateToolName, Arguments: `{"output":"` + answer + `"}`}
}

func TestRunTerminatesWithFinalAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{Content: "searching", ToolCalls: []ToolCall{{ID: "c1", Name: "echo", Arguments: `{"text":"hi"}`}}},
		{ToolCalls: []ToolCall{terminateCall("c2", "the answer is 42")}},
	}}
	agent := newTestAgent(t, llm, AgentConfig{SystemPrompt: "be useful"})

	answer, err := agent.Run(context.Background(), "what is the answer?")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if answer != "the answer is 42" {
		t.Errorf("answer = %q, want %q", answer, "the answer is 42")
	}
	if agent.State() != StateFinished {
		t.Errorf("state = %s, want %s", agent.State(), StateFinished)
	}
	if agent.Steps() != 2 {
		t.Errorf("steps = %d, want 2", agent.Steps())
	}
}

func TestRunFinishesOnContentOnlyTurn(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{Content: "Nothing to do here."},
	}}
	agent := newTestAgent(t, llm, AgentConfig{})

	answer, err := agent.Run(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if answer != "Nothing to do here." {
		t.Errorf("answer = %q", answer)
	}
	if agent.State() != StateFinished {
		t.Errorf("state = %s, want %s", agent.State(), StateFinished)
	}
}

func TestEveryToolCallGetsAnAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{ToolCalls: []ToolCall{
			{ID: "a", Name: "echo", Arguments: `{"text":"one"}`},
			{ID: "b", Name: "echo", Arguments: `{"text":"two"}`},
			{ID: "c", Name: "missing_tool", Arguments: `{}`},
		}},
		{ToolCalls: []ToolCall{terminateCall("d", "done")}},
	}}
	agent := newTestAgent(t, llm, AgentConfig{})

	if _, err := agent.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	answered := map[string]bool{}
	for _, msg := range agent.Memory().Messages() {
		if msg.Role == RoleTool {
			answered[msg.ToolCallID] = true
		}
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		if !answered[id] {
			t.Errorf("tool call %s has no tool message", id)
		}
	}
}

func TestStepBudgetBoundsTheRun(t *testing.T) {
	var responses []*Response
	for i := 0; i < 5; i++ {
		responses = append(responses, &Response{
			ToolCalls: []ToolCall{{ID: "x", Name: "echo", Arguments: `{"text":"again"}`}},
		})
	}
	llm := &scriptedLLM{responses: responses}
	agent := newTestAgent(t, llm, AgentConfig{MaxSteps: 3})

	answer, err := agent.Run(context.Background(), "never finish")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if answer != "" {
		t.Errorf("answer = %q, want empty", answer)
	}
	if agent.Steps() != 3 {
		t.Errorf("steps = %d, want 3", agent.Steps())
	}
	if agent.State() != StateFinished {
		t.Errorf("state = %s, want %s (budget exhaustion is not an error)", agent.State(), StateFinished)
	}
	if llm.askCalls != 3 {
		t.Errorf("LLM calls = %d, want 3", llm.askCalls)
	}
}

func TestRouterFailureEntersErrorState(t *testing.T) {
	llm := &scriptedLLM{askErr: errors.New("all providers failed")}
	agent := newTestAgent(t, llm, AgentConfig{})

	_, err := agent.Run(context.Background(), "go")
	if err == nil {
		t.Fatal("Run() = nil error, want failure")
	}
	if agent.State() != StateError {
		t.Errorf("state = %s, want %s", agent.State(), StateError)
	}
}

func TestFinishedAgentCanRunAgain(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{ToolCalls: []ToolCall{terminateCall("t", "first")}},
		{ToolCalls: []ToolCall{terminateCall("t2", "second")}},
	}}
	agent := newTestAgent(t, llm, AgentConfig{})

	if _, err := agent.Run(context.Background(), "one"); err != nil {
		t.Fatalf("first Run() error: %v", err)
	}
	// A finished agent can run again with fresh budget.
	answer, err := agent.Run(context.Background(), "two")
	if err != nil {
		t.Fatalf("second Run() error: %v", err)
	}
	if answer != "second" {
		t.Errorf("answer = %q, want %q", answer, "second")
	}
}

func TestLazyTerminateIsIntercepted(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{ToolCalls: []ToolCall{{ID: "b1", Name: browserToolName, Arguments: `{"action":"go_to_url","url":"https://example.com"}`}}},
		{ToolCalls: []ToolCall{terminateCall("t1", "premature")}},
		{ToolCalls: []ToolCall{{ID: "b2", Name: browserToolName, Arguments: `{"action":"extract_content"}`}}},
		{ToolCalls: []ToolCall{terminateCall("t2", "real answer")}},
	}}
	agent := newTestAgent(t, llm, AgentConfig{})

	answer, err := agent.Run(context.Background(), "research something")
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if answer != "real answer" {
		t.Errorf("answer = %q, want %q", answer, "real answer")
	}

	interventions := 0
	for _, msg := range agent.Memory().Messages() {
		if msg.Role == RoleTool && msg.Content == lazyTerminateIntervention {
			interventions++
		}
	}
	if interventions != 1 {
		t.Errorf("interventions = %d, want 1", interventions)
	}
}

func TestStuckLoopGetsOneNudge(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{Content: "trying approach A", ToolCalls: []ToolCall{{ID: "1", Name: "echo", Arguments: `{"text":"x"}`}}},
		{Content: "trying approach A", ToolCalls: []ToolCall{{ID: "2", Name: "echo", Arguments: `{"text":"x"}`}}},
		{ToolCalls: []ToolCall{terminateCall("3", "done")}},
	}}
	agent := newTestAgent(t, llm, AgentConfig{})

	if _, err := agent.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	nudges := 0
	for _, msg := range agent.Memory().Messages() {
		if msg.Role == RoleSystem && msg.Content == stuckNudge {
			nudges++
		}
	}
	if nudges != 1 {
		t.Errorf("nudges = %d, want 1", nudges)
	}
}

func TestCriticFeedbackIsInjected(t *testing.T) {
	llm := &scriptedLLM{
		responses: []*Response{
			{ToolCalls: []ToolCall{{ID: "1", Name: "echo", Arguments: `{"text":"x"}`}}},
			{ToolCalls: []ToolCall{terminateCall("2", "done")}},
		},
		quickReply: "The echo told you nothing new, inspect the file instead.",
	}
	agent := newTestAgent(t, llm, AgentConfig{EnableCritic: true})

	if _, err := agent.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if llm.quickCalls != 1 {
		t.Errorf("critic calls = %d, want 1 (terminate is exempt)", llm.quickCalls)
	}

	found := false
	for _, msg := range agent.Memory().Messages() {
		if msg.Role == RoleUser && strings.HasPrefix(msg.Content, "Critic feedback: ") {
			found = true
		}
	}
	if !found {
		t.Error("critic feedback missing from memory")
	}
}

func TestCriticApprovalAddsNothing(t *testing.T) {
	llm := &scriptedLLM{
		responses: []*Response{
			{ToolCalls: []ToolCall{{ID: "1", Name: "echo", Arguments: `{"text":"x"}`}}},
			{ToolCalls: []ToolCall{terminateCall("2", "done")}},
		},
		quickReply: "PROCEED",
	}
	agent := newTestAgent(t, llm, AgentConfig{EnableCritic: true})

	if _, err := agent.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	for _, msg := range agent.Memory().Messages() {
		if strings.HasPrefix(msg.Content, "Critic feedback: ") {
			t.Error("approving critic must not inject feedback")
		}
	}
}

func TestNextStepPromptIsInjected(t *testing.T) {
	llm := &scriptedLLM{responses: []*Response{
		{ToolCalls: []ToolCall{terminateCall("1", "done")}},
	}}
	agent := newTestAgent(t, llm, AgentConfig{NextStepPrompt: "Pick the next action."})

	if _, err := agent.Run(context.Background(), "go"); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	found := false
	for _, msg := range agent.Memory().Messages() {
		if msg.Role == RoleUser && msg.Content == "Pick the next action." {
			found = true
		}
	}
	if !found {
		t.Error("next-step prompt missing from memory")
	}
}
