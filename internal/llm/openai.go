package llm

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ChamsBouzaiene/omni/internal/engine"

	openai "github.com/meguminnnnnnnnn/go-openai"
)

// openaiClient adapts the OpenAI chat completions API (and any
// OpenAI-compatible endpoint via BaseURL) to the router's client contract.
type openaiClient struct {
	api      *openai.Client
	provider Provider
	vision   bool
}

func newOpenAIClient(p Provider) (*openaiClient, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("provider %s: api key is required", p.Name)
	}
	cfg := openai.DefaultConfig(p.APIKey)
	if p.BaseURL != "" {
		cfg.BaseURL = p.BaseURL
	}
	return &openaiClient{
		api:      openai.NewClientWithConfig(cfg),
		provider: p,
		vision:   supportsVision(p),
	}, nil
}

func (c *openaiClient) Name() string       { return c.provider.Name }
func (c *openaiClient) CostScore() float64 { return c.provider.CostScore }

// convertMessages maps engine messages to the OpenAI wire shape. The SDK
// serializes an empty assistant content as null, which the API rejects when
// tool_calls are present, so empty content becomes a single space. Tool
// messages are dropped unless the preceding assistant message carried tool
// calls.
func (c *openaiClient) convertMessages(msgs []engine.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	prevAssistantHadToolCalls := false

	for _, msg := range msgs {
		switch msg.Role {
		case engine.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleSystem,
				Content: msg.Content,
			})
			prevAssistantHadToolCalls = false
		case engine.RoleUser:
			out = append(out, c.userMessage(msg))
			prevAssistantHadToolCalls = false
		case engine.RoleAssistant:
			content := msg.Content
			if content == "" {
				content = " "
			}
			var calls []openai.ToolCall
			for _, tc := range msg.ToolCalls {
				calls = append(calls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   content,
				ToolCalls: calls,
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
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: msg.ToolCallID,
				Content:    content,
			})
		}
	}
	return out
}

// userMessage renders a user turn, attaching the image as a data URI part
// when the model can see it. Non-vision models get text only.
func (c *openaiClient) userMessage(msg engine.Message) openai.ChatCompletionMessage {
	if len(msg.Image) == 0 || !c.vision {
		return openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleUser,
			Content: msg.Content,
		}
	}
	dataURI := "data:image/png;base64," + base64.StdEncoding.EncodeToString(msg.Image)
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: msg.Content},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURI}},
		},
	}
}

func convertTools(tools []engine.ToolSchema) ([]openai.Tool, error) {
	var out []openai.Tool
	for _, ts := range tools {
		var schema map[string]any
		if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
			return nil, fmt.Errorf("invalid tool schema for %s: %w", ts.Name, err)
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        ts.Name,
				Description: ts.Description,
				Parameters:  schema,
			},
		})
	}
	return out, nil
}

func (c *openaiClient) buildRequest(msgs []engine.Message, tools []engine.ToolSchema, choice engine.ToolChoice, maxTokens int) (openai.ChatCompletionRequest, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.provider.Model,
		Messages: c.convertMessages(msgs),
	}

	oaiTools, err := convertTools(tools)
	if err != nil {
		return req, err
	}
	if len(oaiTools) > 0 && choice != engine.ToolChoiceNone {
		req.Tools = oaiTools
		req.ToolChoice = string(choice)
	}

	if maxTokens <= 0 {
		maxTokens = c.provider.MaxTokens
	}
	if maxTokens > 0 {
		req.MaxTokens = maxTokens
	}
	return req, nil
}

func (c *openaiClient) Chat(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema, choice engine.ToolChoice, maxTokens int) (*engine.Response, error) {
	req, err := c.buildRequest(msgs, tools, choice, maxTokens)
	if err != nil {
		return nil, err
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, engine.WrapProviderError(err, c.provider.Name)
	}
	if len(resp.Choices) == 0 {
		return nil, engine.WrapProviderError(fmt.Errorf("empty response"), c.provider.Name)
	}

	choiceMsg := resp.Choices[0].Message
	var calls []engine.ToolCall
	for _, tc := range choiceMsg.ToolCalls {
		args := tc.Function.Arguments
		if args == "" {
			args = "{}"
		}
		calls = append(calls, engine.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}

	return &engine.Response{
		Content:   choiceMsg.Content,
		ToolCalls: calls,
		Usage: engine.Usage{
			Prompt:     resp.Usage.PromptTokens,
			Completion: resp.Usage.CompletionTokens,
		},
		Provider: c.provider.Name,
	}, nil
}

// Stream issues a streaming completion. Content deltas are forwarded as they
// arrive; tool-call fragments are accumulated per call and emitted complete
// once the stream ends, followed by the usage chunk.
func (c *openaiClient) Stream(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema) (<-chan engine.StreamChunk, <-chan error) {
	chunkCh := make(chan engine.StreamChunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(chunkCh)
		defer close(errCh)

		req, err := c.buildRequest(msgs, tools, engine.ToolChoiceAuto, 0)
		if err != nil {
			errCh <- err
			return
		}
		req.Stream = true
		req.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		stream, err := c.api.CreateChatCompletionStream(ctx, req)
		if err != nil {
			errCh <- engine.WrapProviderError(err, c.provider.Name)
			return
		}
		defer stream.Close()

		type pendingCall struct {
			id    string
			name  string
			args  strings.Builder
			index int
		}
		pending := map[int]*pendingCall{}
		var usage engine.Usage

		for {
			resp, err := stream.Recv()
			if err != nil {
				if !errors.Is(err, io.EOF) && !strings.Contains(err.Error(), "EOF") {
					errCh <- engine.WrapProviderError(err, c.provider.Name)
					return
				}
				break
			}

			// The usage-only final chunk has no choices.
			if resp.Usage != nil {
				usage = engine.Usage{
					Prompt:     resp.Usage.PromptTokens,
					Completion: resp.Usage.CompletionTokens,
				}
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta

			if delta.Content != "" {
				select {
				case chunkCh <- engine.StreamChunk{Kind: "content", Content: delta.Content}:
				case <-ctx.Done():
					return
				}
			}

			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				pc, ok := pending[idx]
				if !ok {
					pc = &pendingCall{index: idx}
					pending[idx] = pc
				}
				if tc.ID != "" {
					pc.id = tc.ID
				}
				if tc.Function.Name != "" {
					pc.name = tc.Function.Name
				}
				if tc.Function.Arguments != "" {
					pc.args.WriteString(tc.Function.Arguments)
				}
			}
		}

		ordered := make([]*pendingCall, 0, len(pending))
		for _, pc := range pending {
			if pc.name != "" {
				ordered = append(ordered, pc)
			}
		}
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

		for _, pc := range ordered {
			args := pc.args.String()
			if args == "" {
				args = "{}"
			}
			select {
			case chunkCh <- engine.StreamChunk{Kind: "tool_call", ToolCall: engine.ToolCall{
				ID:        pc.id,
				Name:      pc.name,
				Arguments: args,
			}}:
			case <-ctx.Done():
				return
			}
		}

		if usage.Prompt > 0 || usage.Completion > 0 {
			select {
			case chunkCh <- engine.StreamChunk{Kind: "usage", Usage: usage}:
			case <-ctx.Done():
				return
			}
		}
		errCh <- nil
	}()

	return chunkCh, errCh
}
