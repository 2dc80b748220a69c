package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const (
	summarizeSystem = `You compress prior conversation history for an autonomous agent. Preserve decisions, tool outcomes, URLs, file paths, numbers, errors, and open questions. Omit pleasantries and redundant logs.`

	summaryLabel    = "[Conversation summary]"
	maxSummaryChars = 500
	perMessageChars = 300
)

// Summarize compacts the conversation when it exceeds SummaryThreshold.
// System messages and the last KeepRecent messages survive verbatim; the
// prefix in between is collapsed into a single synthetic system message.
// Summarization never fails the caller: if the model call errors, the
// prefix is dropped instead (sliding window).
func (m *Memory) Summarize(ctx context.Context, llm LLM) {
	if len(m.messages) <= m.SummaryThreshold {
		return
	}

	keep := m.KeepRecent
	if keep <= 0 {
		keep = defaultKeepRecent
	}

	var system []Message
	var rest []Message
	for _, msg := range m.messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}
	if len(rest) <= keep {
		return
	}

	prefix := rest[:len(rest)-keep]
	tail := rest[len(rest)-keep:]

	summary, err := summarizePrefix(ctx, llm, prefix)
	if err != nil {
		log.Printf("summarization failed, falling back to sliding window: %v", err)
		m.messages = append(append([]Message{}, system...), tail...)
		return
	}

	compacted := make([]Message, 0, len(system)+1+len(tail))
	compacted = append(compacted, system...)
	compacted = append(compacted, SystemMessage(summaryLabel+" "+summary))
	compacted = append(compacted, tail...)
	m.messages = compacted
}

func summarizePrefix(ctx context.Context, llm LLM, prefix []Message) (string, error) {
	req := []Message{
		SystemMessage(summarizeSystem),
		UserMessage("Summarize the following conversation in under 400 characters. Keep facts and decisions:\n\n" + renderForSummary(prefix)),
	}
	out, err := llm.QuickAsk(ctx, req, 256)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(Sanitize(out))
	if out == "" {
		return "", fmt.Errorf("empty summary")
	}
	return truncateRunes(out, maxSummaryChars), nil
}

// renderForSummary formats prefix messages for the summarization request.
// Content is truncated per message and tool-call turns are replaced with
// the called tool names: arguments rarely matter once the result is known.
func renderForSummary(msgs []Message) string {
	var b strings.Builder
	for _, msg := range msgs {
		b.WriteString("[" + string(msg.Role) + "] ")
		if len(msg.ToolCalls) > 0 {
			names := make([]string, len(msg.ToolCalls))
			for i, tc := range msg.ToolCalls {
				names[i] = tc.Name
			}
			b.WriteString("called " + strings.Join(names, ", "))
			if msg.Content != "" {
				b.WriteString(": ")
			}
		}
		content := msg.Content
		if len(content) > perMessageChars {
			content = truncateRunes(content, perMessageChars) + "..."
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return b.String()
}
