package engine

import (
	"context"
	"strings"
)

// simpleTools are cheap or meta tools whose outcomes need no reflection;
// skipping the critic for them saves one model call per step.
var simpleTools = map[string]bool{
	"web_search": true,
	"calculator": true,
	"plan":       true,
	"think":      true,
	"terminate":  true,
}

const criticVerdictToken = "PROCEED"

const (
	criticMaxChars  = 600
	criticMaxTokens = 200
)

const criticPrompt = `You are a strict progress critic for an autonomous agent. Below is the latest action and its result. If the agent is making sufficient progress toward the user's goal, reply with exactly "PROCEED". Otherwise reply with one short paragraph describing what is wrong and what to do instead.`

// runCritic issues one tool-free reflection over the last acted step and
// returns the critique to feed back, or "" when the critic approves (or
// fails — a broken critic must never stall the loop).
func runCritic(ctx context.Context, llm LLM, recent []Message) string {
	var b strings.Builder
	for _, m := range recent {
		b.WriteString("[" + string(m.Role) + "] ")
		content := m.Content
		if len(content) > perMessageChars {
			content = truncateRunes(content, perMessageChars) + "..."
		}
		b.WriteString(content)
		b.WriteString("\n")
	}

	reply, err := llm.QuickAsk(ctx, []Message{
		SystemMessage(criticPrompt),
		UserMessage(b.String()),
	}, criticMaxTokens)
	if err != nil {
		return ""
	}

	reply = strings.TrimSpace(Sanitize(reply))
	if reply == "" || strings.Contains(reply, criticVerdictToken) {
		return ""
	}
	return truncateRunes(reply, criticMaxChars)
}
