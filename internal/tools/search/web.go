// Package search implements the web_search tool against a Tavily-compatible
// search API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/omni/internal/engine"
)

const (
	defaultBaseURL = "https://api.tavily.com/search"
	defaultResults = 5
	maxResults     = 10
)

// Client calls the search API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a search client. An empty baseURL uses the Tavily
// endpoint.
func NewClient(apiKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type searchRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type searchResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Results []searchResult `json:"results"`
}

// Search runs one query and returns ranked results.
func (c *Client) Search(ctx context.Context, query string, n int) (*searchResponse, error) {
	if n <= 0 {
		n = defaultResults
	}
	if n > maxResults {
		n = maxResults
	}

	body, err := json.Marshal(searchRequest{APIKey: c.apiKey, Query: query, MaxResults: n})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed searchResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}
	return &parsed, nil
}

const webSearchSchema = `{
	"type": "object",
	"properties": {
		"query": {
			"type": "string",
			"description": "The search query."
		},
		"num_results": {
			"type": "integer",
			"minimum": 1,
			"maximum": 10,
			"description": "Number of results to return, default 5."
		}
	},
	"required": ["query"]
}`

// WebSearch builds the web_search tool.
func WebSearch(client *Client) engine.Tool {
	return engine.Tool{
		Name:        "web_search",
		Description: "Search the web and return the top results with titles, URLs, and snippets.",
		SchemaJSON:  webSearchSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			n := defaultResults
			if v, ok := args["num_results"].(float64); ok {
				n = int(v)
			}

			resp, err := client.Search(ctx, query, n)
			if err != nil {
				return nil, err
			}
			if len(resp.Results) == 0 {
				return "No results found for: " + query, nil
			}

			var b strings.Builder
			if resp.Answer != "" {
				b.WriteString("Answer: " + resp.Answer + "\n\n")
			}
			for i, r := range resp.Results {
				fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.URL, strings.TrimSpace(r.Content))
			}
			return b.String(), nil
		},
	}
}
