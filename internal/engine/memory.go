package engine

// Memory is the ordered conversation log with bounded size.
//
// Two policy numbers govern growth: MaxMessages is the hard cap (emergency
// truncation fires at twice that) and SummaryThreshold is the soft cap that
// triggers cost-bounded summarization before each think step.
type Memory struct {
	MaxMessages      int
	SummaryThreshold int
	KeepRecent       int // tail kept verbatim across summarization

	messages []Message
}

const (
	defaultMaxMessages      = 100
	defaultSummaryThreshold = 30
	defaultKeepRecent       = 8
)

// NewMemory creates a Memory with the given policy. Zero values fall back
// to defaults.
func NewMemory(maxMessages, summaryThreshold int) *Memory {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	if summaryThreshold <= 0 {
		summaryThreshold = defaultSummaryThreshold
	}
	return &Memory{
		MaxMessages:      maxMessages,
		SummaryThreshold: summaryThreshold,
		KeepRecent:       defaultKeepRecent,
	}
}

// Add appends a message. Adding a message whose role and content match the
// current last message is a no-op when neither carries tool calls: models
// under failover occasionally re-emit identical turns and duplicates only
// burn context.
func (m *Memory) Add(msg Message) {
	if n := len(m.messages); n > 0 {
		last := m.messages[n-1]
		if last.Role == msg.Role && last.Content == msg.Content &&
			len(last.ToolCalls) == 0 && len(msg.ToolCalls) == 0 {
			return
		}
	}
	m.messages = append(m.messages, msg)

	if len(m.messages) > 2*m.MaxMessages {
		m.emergencyTruncate()
	}
}

// emergencyTruncate keeps all system messages plus the last MaxMessages
// non-system messages. It is the backstop for a failed or disabled
// summarizer; normal compaction happens in Summarize.
func (m *Memory) emergencyTruncate() {
	var system, rest []Message
	for _, msg := range m.messages {
		if msg.Role == RoleSystem {
			system = append(system, msg)
		} else {
			rest = append(rest, msg)
		}
	}
	if len(rest) > m.MaxMessages {
		rest = rest[len(rest)-m.MaxMessages:]
	}
	m.messages = append(system, rest...)
}

// Len returns the number of stored messages.
func (m *Memory) Len() int { return len(m.messages) }

// Messages returns the live backing slice. Callers must treat it as
// read-only.
func (m *Memory) Messages() []Message { return m.messages }

// Last returns the n most recent messages (fewer if the log is shorter).
func (m *Memory) Last(n int) []Message {
	if len(m.messages) <= n {
		return m.messages
	}
	return m.messages[len(m.messages)-n:]
}

// Serialize produces the provider-ready message list: a sanitized copy in
// the canonical minimal shape. Adapters perform the final wire encoding.
func (m *Memory) Serialize() []Message {
	return SanitizeMessages(m.messages)
}
