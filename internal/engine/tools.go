package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ToolFunc is a tool handler. It receives schema-validated arguments and
// returns either a plain string or a *ToolResult; anything else is
// stringified.
type ToolFunc func(ctx context.Context, args map[string]any) (any, error)

// ToolResult is the normalized outcome of one tool execution.
type ToolResult struct {
	Output string
	Error  string
	Image  []byte // optional screenshot or similar, attached for vision models
}

// String renders the result the way it is committed to memory.
func (r *ToolResult) String() string {
	if r.Error != "" {
		return "Error: " + r.Error
	}
	return r.Output
}

// Failed reports whether the result carries an error.
func (r *ToolResult) Failed() bool { return r.Error != "" }

// Tool describes one callable tool: stable name, human description, JSON
// schema for its arguments, and the async handler. Instructions, when set,
// are merged into the system prompt at loop start. SideEffect tools are
// excluded from result caching and handler retry.
type Tool struct {
	Name         string
	Description  string
	SchemaJSON   string
	Instructions string
	Fn           ToolFunc
	Cleanup      func(ctx context.Context) error
	SideEffect   bool
}

// ValidateArgs validates args against the tool's JSON schema.
func (t Tool) ValidateArgs(args map[string]any) error {
	if t.SchemaJSON == "" {
		return nil
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(t.SchemaJSON),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid arguments for %s: %s", t.Name, strings.Join(msgs, "; "))
	}
	return nil
}

// ToolRegistry maps tool name to Tool.
type ToolRegistry map[string]Tool

// Schemas returns provider-ready schemas, sorted by name for a stable
// prompt fingerprint.
func (r ToolRegistry) Schemas() []ToolSchema {
	s := make([]ToolSchema, 0, len(r))
	for _, t := range r {
		s = append(s, ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	sort.Slice(s, func(i, j int) bool { return s[i].Name < s[j].Name })
	return s
}

// Instructions concatenates the per-tool instruction blocks for the system
// prompt, in name order.
func (r ToolRegistry) Instructions() string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		if ins := r[name].Instructions; ins != "" {
			b.WriteString("\n\n## Tool: " + name + "\n")
			b.WriteString(ins)
		}
	}
	return b.String()
}

// CleanupAll runs every tool's Cleanup, returning the first error.
func (r ToolRegistry) CleanupAll(ctx context.Context) error {
	var first error
	for _, t := range r {
		if t.Cleanup == nil {
			continue
		}
		if err := t.Cleanup(ctx); err != nil && first == nil {
			first = err
		}
	}
	return first
}
