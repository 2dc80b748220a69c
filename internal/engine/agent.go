package engine

import (
	"context"
	"fmt"
	"log"
)

// AgentConfig holds the knobs of one agent instance.
type AgentConfig struct {
	MaxSteps       int
	SystemPrompt   string
	NextStepPrompt string // opaque prompt prepended before each think call
	ToolChoice     ToolChoice
	EnableCritic   bool
	CriticWindow   int // messages shown to the critic (default 4)
}

// DefaultAgentConfig returns the stock configuration.
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxSteps:     30,
		ToolChoice:   ToolChoiceAuto,
		EnableCritic: true,
		CriticWindow: 4,
	}
}

// Agent drives the think-act-critic loop over one conversation. It owns its
// Memory and Dispatcher; nothing is shared mutable across agent instances,
// so separate agents may run in parallel.
type Agent struct {
	llm        LLM
	memory     *Memory
	dispatcher *Dispatcher
	hooks      Hooks
	config     AgentConfig

	state       AgentState
	step        int
	finalAnswer string
}

// TerminateToolName is the mandatory tool that ends a run and carries the
// final answer in its "output" argument.
const TerminateToolName = "terminate"

// NewAgent assembles an agent. The dispatcher's registry must include the
// terminate tool; tool instruction blocks are merged into the system prompt.
func NewAgent(llm LLM, memory *Memory, dispatcher *Dispatcher, hooks Hooks, cfg AgentConfig) *Agent {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultAgentConfig().MaxSteps
	}
	if cfg.ToolChoice == "" {
		cfg.ToolChoice = ToolChoiceAuto
	}
	if cfg.CriticWindow <= 0 {
		cfg.CriticWindow = 4
	}

	if cfg.SystemPrompt != "" {
		prompt := cfg.SystemPrompt
		if ins := dispatcher.Registry.Instructions(); ins != "" {
			prompt += ins
		}
		memory.Add(SystemMessage(prompt))
	}

	return &Agent{
		llm:        llm,
		memory:     memory,
		dispatcher: dispatcher,
		hooks:      hooks,
		config:     cfg,
		state:      StateIdle,
	}
}

// State returns the agent's lifecycle state.
func (a *Agent) State() AgentState { return a.state }

// Steps returns the number of think steps taken by the last run.
func (a *Agent) Steps() int { return a.step }

// FinalAnswer returns the captured final answer, if any.
func (a *Agent) FinalAnswer() string { return a.finalAnswer }

// Memory exposes the conversation log for inspection.
func (a *Agent) Memory() *Memory { return a.memory }

// Run executes the loop until the task terminates, the step budget is
// exhausted, or a fatal router error occurs. request, when non-empty, is
// pushed as a user message first. At most one terminal transition happens
// per invocation.
func (a *Agent) Run(ctx context.Context, request string) (string, error) {
	if a.state == StateRunning {
		return "", fmt.Errorf("agent is already running")
	}
	a.state = StateRunning
	a.step = 0
	a.finalAnswer = ""

	if request != "" {
		a.memory.Add(UserMessage(request))
	}

	var runErr error
	for a.step < a.config.MaxSteps && a.state == StateRunning {
		if err := ctx.Err(); err != nil {
			a.state = StateError
			runErr = fmt.Errorf("run cancelled: %w", err)
			break
		}

		a.step++
		a.hooks.OnStepStart(ctx, a.step)

		if err := a.stepOnce(ctx); err != nil {
			a.state = StateError
			runErr = err
			a.hooks.OnError(ctx, err)
			break
		}
	}

	if a.state == StateRunning {
		// Step budget exhausted without a terminate call.
		a.state = StateFinished
	}

	if a.finalAnswer != "" {
		a.hooks.OnFinal(ctx, a.finalAnswer)
	}
	return a.finalAnswer, runErr
}

// stepOnce performs one think step plus the act and critic phases it
// triggers.
func (a *Agent) stepOnce(ctx context.Context) error {
	a.hooks.OnThinking(ctx, a.step)

	// Keep context bounded before paying for the think call.
	a.memory.Summarize(ctx, a.llm)
	a.injectNextStepPrompt()

	resp, err := a.llm.AskTool(ctx, a.memory.Serialize(), a.dispatcher.Registry.Schemas(), a.config.ToolChoice)
	if err != nil {
		// Failover already exhausted inside the router; record the failure
		// so a resumed conversation can see what happened.
		a.memory.Add(AssistantMessage(fmt.Sprintf("LLM request failed: %v", err), nil))
		return err
	}

	content := Sanitize(resp.Content)
	a.memory.Add(AssistantMessage(content, resp.ToolCalls))
	a.hooks.OnAssistant(ctx, content, resp.ToolCalls)

	if len(resp.ToolCalls) == 0 {
		// A content-only turn is the model's final answer.
		a.finish(content)
		return nil
	}

	lastTool := a.actPhase(ctx, resp.ToolCalls)

	if a.state == StateRunning && a.config.EnableCritic && !simpleTools[lastTool] {
		if critique := runCritic(ctx, a.llm, a.memory.Last(a.config.CriticWindow)); critique != "" {
			a.hooks.OnCritic(ctx, critique)
			a.memory.Add(UserMessage("Critic feedback: " + critique))
		}
	}

	if a.state == StateRunning && isStuck(a.memory.Last(4)) {
		a.hooks.OnStuck(ctx, a.step)
		a.memory.Add(SystemMessage(stuckNudge))
	}
	return nil
}

// actPhase dispatches the step's tool calls in model order, committing each
// result before the next call runs so later tools see earlier outputs.
// Returns the name of the last executed tool.
func (a *Agent) actPhase(ctx context.Context, calls []ToolCall) string {
	lastTool := ""
	for _, call := range calls {
		lastTool = call.Name

		if call.Name == TerminateToolName && lazyTerminate(a.memory.Last(lazinessWindow)) {
			log.Printf("terminate intercepted at step %d: browser opened without interaction", a.step)
			a.memory.Add(ToolMessage(lazyTerminateIntervention, call))
			continue
		}

		a.hooks.OnToolStarted(ctx, call)
		result := a.dispatcher.Execute(ctx, call.Name, call.Arguments)
		a.hooks.OnToolFinished(ctx, call, result)

		msg := ToolMessage(result.String(), call)
		msg.Image = result.Image
		a.memory.Add(msg)

		if call.Name == TerminateToolName && !result.Failed() {
			a.finish(result.Output)
		}
	}
	return lastTool
}

// injectNextStepPrompt prepends the configured next-step prompt as a user
// message, unless the last message already carries it.
func (a *Agent) injectNextStepPrompt() {
	prompt := a.config.NextStepPrompt
	if prompt == "" {
		return
	}
	if msgs := a.memory.Messages(); len(msgs) > 0 && msgs[len(msgs)-1].Content == prompt {
		return
	}
	a.memory.Add(UserMessage(prompt))
}

// finish performs the single terminal transition of a run.
func (a *Agent) finish(answer string) {
	if a.state != StateRunning {
		return
	}
	a.state = StateFinished
	a.finalAnswer = answer
}

// Cleanup releases tool-held resources (browser sessions, sandboxes).
func (a *Agent) Cleanup(ctx context.Context) error {
	return a.dispatcher.Registry.CleanupAll(ctx)
}
