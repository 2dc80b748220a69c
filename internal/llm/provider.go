// Package llm implements the routing client behind engine.LLM: provider
// adapters, per-provider retries, cost-ordered failover, response caching,
// and usage accounting.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

// Provider describes one configured LLM backend.
type Provider struct {
	Name      string  `json:"name"`
	Kind      string  `json:"kind"` // "openai" or "anthropic"
	APIKey    string  `json:"api_key"`
	BaseURL   string  `json:"base_url,omitempty"`
	Model     string  `json:"model"`
	MaxTokens int     `json:"max_tokens,omitempty"`
	Vision    bool    `json:"vision,omitempty"`
	NoTools   bool    `json:"no_tools,omitempty"`   // model lacks function calling, excluded from routing
	CostScore float64 `json:"cost_score,omitempty"` // blended $ per 1M tokens, orders backups
}

// client is the adapter contract the router fans requests out to.
type client interface {
	Name() string
	CostScore() float64
	Chat(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema, choice engine.ToolChoice, maxTokens int) (*engine.Response, error)
	Stream(ctx context.Context, msgs []engine.Message, tools []engine.ToolSchema) (<-chan engine.StreamChunk, <-chan error)
}

// NewClient builds the adapter for a provider configuration.
func NewClient(p Provider) (client, error) {
	if p.Model == "" {
		return nil, fmt.Errorf("provider %s: model is required", p.Name)
	}
	switch strings.ToLower(p.Kind) {
	case "openai", "":
		return newOpenAIClient(p)
	case "anthropic":
		return newAnthropicClient(p)
	default:
		return nil, fmt.Errorf("provider %s: unknown kind %q", p.Name, p.Kind)
	}
}

// visionModelMarkers flags models known to accept image input when the
// provider config does not say so explicitly.
var visionModelMarkers = []string{"gpt-4o", "gpt-4-turbo", "gpt-4.1", "vision", "claude-3", "claude-sonnet", "claude-opus", "gemini"}

func supportsVision(p Provider) bool {
	if p.Vision {
		return true
	}
	model := strings.ToLower(p.Model)
	for _, marker := range visionModelMarkers {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}
