package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// DefaultMaxResultLen bounds the rendered tool output committed to
	// memory. Oversized outputs are cut in the middle: the head carries the
	// setup, the tail carries the result or error.
	DefaultMaxResultLen = 10_000
	defaultKeepEdge     = 4_000

	defaultToolTimeout = 120 * time.Second
)

// Dispatcher resolves named tool calls, invokes handlers with bounded
// retry, and normalizes results. Tool failures never surface as Go errors:
// they become ToolResult values the loop records as tool messages so the
// model can self-correct.
type Dispatcher struct {
	Registry     ToolRegistry
	MaxResultLen int
	Timeout      time.Duration
	RetryPolicy  RetryPolicy

	cache map[string]*ToolResult // nil when caching is disabled
}

// NewDispatcher creates a Dispatcher over the registry with defaults.
func NewDispatcher(reg ToolRegistry) *Dispatcher {
	return &Dispatcher{
		Registry:     reg,
		MaxResultLen: DefaultMaxResultLen,
		Timeout:      defaultToolTimeout,
		RetryPolicy:  DefaultToolRetryPolicy(),
	}
}

// EnableCache turns on (name, arguments) result caching. Side-effectful
// tools are always skipped.
func (d *Dispatcher) EnableCache() {
	if d.cache == nil {
		d.cache = make(map[string]*ToolResult)
	}
}

// Execute runs the named tool with the JSON-encoded arguments.
func (d *Dispatcher) Execute(ctx context.Context, name, argsJSON string) *ToolResult {
	tool, ok := d.Registry[name]
	if !ok {
		return &ToolResult{Error: fmt.Sprintf("tool not found: %s", name)}
	}

	var args map[string]any
	if argsJSON != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return &ToolResult{Error: fmt.Sprintf("invalid arguments for %s: %v", name, err)}
		}
	}
	if args == nil {
		args = map[string]any{}
	}

	if err := tool.ValidateArgs(args); err != nil {
		return &ToolResult{Error: err.Error()}
	}

	cacheKey := name + "\x00" + argsJSON
	if d.cache != nil && !tool.SideEffect {
		if cached, ok := d.cache[cacheKey]; ok {
			return cached
		}
	}

	result := d.invoke(ctx, tool, args)
	result.Output = d.truncate(result.Output)
	result.Error = d.truncate(result.Error)

	if d.cache != nil && !tool.SideEffect && !result.Failed() {
		d.cache[cacheKey] = result
	}
	return result
}

// invoke calls the handler under the dispatcher timeout, retrying only
// handler-level errors. Error results the handler returns by value are
// deliberate and pass through untouched.
func (d *Dispatcher) invoke(ctx context.Context, tool Tool, args map[string]any) *ToolResult {
	policy := d.RetryPolicy
	if tool.SideEffect {
		policy = RetryPolicy{} // re-running a side effect is worse than reporting it
	}

	raw, err := RetryWithPolicy(ctx, policy,
		func(ctx context.Context) (any, error) {
			callCtx := ctx
			if d.Timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, d.Timeout)
				defer cancel()
			}
			return tool.Fn(callCtx, args)
		},
		func(err error) RetryClass {
			if ctx.Err() != nil {
				return RetryClassNonRetryable
			}
			return RetryClassTransient
		},
		nil,
	)
	if err != nil {
		return &ToolResult{Error: err.Error()}
	}
	return normalizeResult(raw)
}

func normalizeResult(raw any) *ToolResult {
	switch v := raw.(type) {
	case *ToolResult:
		if v == nil {
			return &ToolResult{}
		}
		return v
	case ToolResult:
		return &v
	case string:
		return &ToolResult{Output: v}
	case nil:
		return &ToolResult{}
	default:
		return &ToolResult{Output: fmt.Sprintf("%v", v)}
	}
}

// truncate cuts the middle out of oversized output, preserving the first
// and last keepEdge characters around a marker.
func (d *Dispatcher) truncate(s string) string {
	maxLen := d.MaxResultLen
	if maxLen <= 0 {
		maxLen = DefaultMaxResultLen
	}
	if len(s) <= maxLen {
		return s
	}
	edge := defaultKeepEdge
	if 2*edge >= maxLen {
		edge = maxLen / 3
	}
	marker := fmt.Sprintf("\n... [%d chars truncated] ...\n", len(s)-2*edge)
	return s[:edge] + marker + s[len(s)-edge:]
}
