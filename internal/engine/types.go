// Package engine implements the agent control loop and its supporting
// subsystems: conversation memory, tool dispatch, and the client contract
// that LLM providers plug into.
package engine

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolChoice controls whether the model may, must, or must not call tools.
type ToolChoice string

const (
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

// AgentState is the lifecycle state of one Agent instance.
type AgentState string

const (
	StateIdle     AgentState = "IDLE"
	StateRunning  AgentState = "RUNNING"
	StateFinished AgentState = "FINISHED"
	StateError    AgentState = "ERROR"
)

// ToolCall is a function invocation requested by the assistant.
// Arguments is the raw JSON-encoded argument object as emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is the atomic conversation entry, provider-agnostic.
//
// Content may be empty for assistant turns that carry only tool calls;
// provider adapters decide how to encode that (null, space, omitted block).
// For tool messages Name is the tool's name and ToolCallID correlates the
// message to the assistant tool call it answers.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	Name       string
	ToolCallID string
	Image      []byte // optional attachment, rendered only for vision-capable providers
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message with optional tool calls.
func AssistantMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage builds a tool-role message answering the given call.
func ToolMessage(content string, call ToolCall) Message {
	return Message{Role: RoleTool, Content: content, Name: call.Name, ToolCallID: call.ID}
}

// Usage holds token accounting returned by providers.
type Usage struct {
	Prompt     int
	Completion int
}

// Response is a normalized result of one tool-enabled chat call.
type Response struct {
	Content   string
	ToolCalls []ToolCall
	Usage     Usage
	Provider  string // name of the provider that answered
}

// StreamChunk is one incremental delta from a streaming chat call.
type StreamChunk struct {
	Kind     string // "content" | "tool_call" | "usage"
	Content  string
	ToolCall ToolCall // complete call, emitted once assembly finishes
	Usage    Usage
}

// ToolSchema is the function-calling descriptor handed to providers.
type ToolSchema struct {
	Name        string
	Description string
	JSONSchema  string
}

// LLM is the routing client the loop talks to. Implementations handle
// provider selection, failover, retries, caching, and usage accounting.
type LLM interface {
	// AskTool performs one non-streaming tool-enabled completion.
	AskTool(ctx context.Context, msgs []Message, tools []ToolSchema, choice ToolChoice) (*Response, error)
	// AskToolStream is the streaming variant. Chunks preserve model order;
	// the error channel yields exactly one value (nil on success) when the
	// stream ends.
	AskToolStream(ctx context.Context, msgs []Message, tools []ToolSchema) (<-chan StreamChunk, <-chan error)
	// QuickAsk performs a tool-free completion, used for reflection and
	// summarization. maxTokens <= 0 means provider default.
	QuickAsk(ctx context.Context, msgs []Message, maxTokens int) (string, error)
}
