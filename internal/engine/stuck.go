package engine

import (
	"encoding/json"
	"strings"
)

const stuckNudge = "You appear to be repeating yourself. Re-read the conversation, change your approach, and make concrete progress. If the task is done, call the terminate tool with your final answer."

// isStuck reports a stuck loop: at least two assistant messages with
// identical non-empty textual content within the last four messages.
func isStuck(msgs []Message) bool {
	if len(msgs) > 4 {
		msgs = msgs[len(msgs)-4:]
	}
	seen := map[string]int{}
	for _, m := range msgs {
		if m.Role != RoleAssistant || m.Content == "" {
			continue
		}
		seen[m.Content]++
		if seen[m.Content] >= 2 {
			return true
		}
	}
	return false
}

const (
	browserToolName = "browser_use"

	lazinessWindow = 10
)

// interactionActions are the browser actions that count as actually working
// with a page, as opposed to just opening it.
var interactionActions = []string{
	"click", "read", "extract", "input", "scroll",
}

const lazyTerminateIntervention = "Terminate rejected: you opened a browser page but never interacted with it. Use browser_use to click, extract content, input text, or scroll to gather what the task needs, then terminate with a complete answer."

// lazyTerminate reports whether a terminate call should be intercepted:
// within the last ten messages a browser tool was called, and no
// interaction-class browser action has occurred since. Opening a page and
// immediately concluding almost always means the model skipped the work.
func lazyTerminate(msgs []Message) bool {
	if len(msgs) > lazinessWindow {
		msgs = msgs[len(msgs)-lazinessWindow:]
	}

	browserUsed := false
	interacted := false
	for _, m := range msgs {
		for _, tc := range m.ToolCalls {
			if tc.Name != browserToolName {
				continue
			}
			browserUsed = true
			if isInteraction(tc.Arguments) {
				interacted = true
			} else {
				// A fresh navigation resets the requirement.
				interacted = false
			}
		}
	}
	return browserUsed && !interacted
}

func isInteraction(argsJSON string) bool {
	var args struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return false
	}
	action := strings.ToLower(args.Action)
	for _, a := range interactionActions {
		if strings.Contains(action, a) {
			return true
		}
	}
	return false
}
