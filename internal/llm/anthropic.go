package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ChamsBouzaiene/omni/internal/engine"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

const anthropicDefaultMaxTokens = 4096

// anthropicClient adapts the Anthropic messages API to the router's client
// contract.
type anthropicClient struct {
	api      *anthropic.Client
	provider Provider
	vision   bool
}

func newAnthropicClient(p Provider) (*anthropicClient, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api key is required", p.Name)
	}
	return &anthropicClient{
		api:      anthropic.NewClient(p.APIKey),
		provider: p,
		vision:   supportsVision(p),
	}, nil
}

func (c *anthropicClient) Name() string       { return c.provider.Name }
func (c *anthropicClient) CostScore() float64 { return c.provider.CostScore }

// convertMessages maps engine messages onto Anthropic's shape: system turns
// become MultiSystem parts, tool results become user-role tool_result blocks.
// Tool results without a preceding tool_use assistant turn are dropped.
func (c *anthropicClient) convertMessages(msgs []engine.Message) ([]anthropic.MessageSystemPart, []anthropic.Message) {
	var system []anthropic.MessageSystemPart
	var out []anthropic.Message
	prevAssistantHadToolCalls := false

	for _, msg := range msgs {
		switch msg.Role {
		case engine.RoleSystem:
			system = append(system, anthropic.MessageSystemPart{Type: "text", Text: msg.Content})
			prevAssistantHadToolCalls = false
		case engine.RoleUser:
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: c.userContent(msg),
			})
			prevAssistantHadToolCalls = false
		case engine.RoleAssistant:
			var content []anthropic.MessageContent
			if msg.Content != "" && msg.Content != " " {
				content = append(content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				args := tc.Arguments
				if args == "" {
					args = "{}"
				}
				content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(args)))
			}
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleAssistant,
				Content: content,
			})
			prevAssistantHadToolCalls = len(msg.ToolCalls) > 0
		case engine.RoleTool:
			if !prevAssistantHadToolCalls {
				continue
			}
			content := msg.Content
			if content == "" {
				content = "{}"
			}
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{anthropic.NewToolResultMessageContent(msg.ToolCallID, content, false)},
			})
		}
	}
	return system, out
}

func (c *anthropicClient) userContent(msg engine.Message) []anthropic.MessageContent {
	content := []anthropic.MessageContent{anthropic.NewTextMessageContent(msg.Content)}
	if len(msg.Image) > 0 && c.vision {
		content = append(content, anthropic.NewImageMessageContent(
			anthropic.NewMessageContentSource(anthropic.MessagesContentSourceTypeBase64, "image/png", msg.Image),
		))
	}
	return content
}

func convertToolDefs(tools []engine.ToolSchema) ([]anthropic.ToolDefinition, error) {
	var out []anthropic.ToolDefinition
	for _, ts := range tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", ts.Name, err)
		}
		out = append(out, anthropic.ToolDefinition{
			Name:        ts.Name,
			Description: ts.Description,
			InputSchema: schema,
		})
	}
	return out, nil
}

func (c *anthropicClient) buildRequest(msgs []engine.Message, tools []engine.ToolSchema, choice engine.ToolChoice, maxTokens int) (anthropic.MessagesRequest, error) {
	system, converted := c.convertMessages(msgs)

	if maxTokens <= 0 {
		maxTokens = c.provider.MaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	req := anthropic.MessagesRequest{
		Model:     anthropic.Model(c.provider.Model),
		Messages:  converted,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		req.MultiSystem = system
	}

	if choice != engine.ToolChoiceNone {
		defs, err := convertToolDefs(tools)
		if err != nil {
			return req, err
		}
		if len(defs) > 0 {
			req.Tools = defs
			if choice == engine.ToolChoiceRequired {
				req.ToolChoice = &anthropic.ToolChoice{Type: "any"}
			}
		}
	}
	return req, nil
}

func (c *anthropicClient) Chat(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema, choice engine.ToolChoice, maxTokens int) (*engine.Response, error) {
	req, err := c.buildRequest(msgs, tools, choice, maxTokens)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateMessages(ctx, req)
	if err != nil {
		return nil, engine.WrapProviderError(err, c.provider.Name)
	}

	var text string
	var calls []engine.ToolCall
	for _, block := range resp.Content {
		switch block.Type {
		case anthropic.MessagesContentTypeText:
			if block.Text != nil {
				text += *block.Text
			}
		case anthropic.MessagesContentTypeToolUse:
			if block.MessageContentToolUse == nil {
				continue
			}
			tu := block.MessageContentToolUse
			args := string(tu.Input)
			if args == "" {
				args = "{}"
			}
			calls = append(calls, engine.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			})
		}
	}

	return &engine.Response{
		Content:   text,
		ToolCalls: calls,
		Usage: engine.Usage{
			Prompt:     resp.Usage.InputTokens,
			Completion: resp.Usage.OutputTokens,
		},
		Provider: c.provider.Name,
	}, nil
}

// Stream adapts the SDK's callback-based streaming to the chunk channel.
// Text deltas flow through as they arrive; tool_use blocks are emitted when
// their content block closes, so calls always arrive complete and in order.
func (c *anthropicClient) Stream(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema) (<-chan engine.StreamChunk, <-chan error) {
	chunkCh := make(chan engine.StreamChunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		base, err := c.buildRequest(msgs, tools, engine.ToolChoiceAuto, 0)
		if err != nil {
			errCh <- err
			return
		}
		req := anthropic.MessagesStreamRequest{MessagesRequest: base}

		send := func(chunk engine.StreamChunk) bool {
			select {
			case chunkCh <- chunk:
				return true
			case <-ctx.Done():
				return false
			}
		}

		req.OnContentBlockDelta = func(delta anthropic.MessagesEventContentBlockDeltaData) {
			if delta.Delta.Type == "text_delta" && delta.Delta.Text != nil {
				send(engine.StreamChunk{Kind: "content", Content: *delta.Delta.Text})
			}
		}
		req.OnContentBlockStop = func(_ anthropic.MessagesEventContentBlockStopData, content anthropic.MessageContent) {
			if content.Type != anthropic.MessagesContentTypeToolUse || content.MessageContentToolUse == nil {
				return
			}
			tu := content.MessageContentToolUse
			args := string(tu.Input)
			if args == "" {
				args = "{}"
			}
			send(engine.StreamChunk{Kind: "tool_call", ToolCall: engine.ToolCall{
				ID:        tu.ID,
				Name:      tu.Name,
				Arguments: args,
			}})
		}

		resp, err := c.api.CreateMessagesStream(ctx, req)
		if err != nil {
			errCh <- engine.WrapProviderError(err, c.provider.Name)
			return
		}

		if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
			send(engine.StreamChunk{Kind: "usage", Usage: engine.Usage{
				Prompt:     resp.Usage.InputTokens,
				Completion: resp.Usage.OutputTokens,
			}})
		}
		errCh <- nil
	}()

	return chunkCh, errCh
}
