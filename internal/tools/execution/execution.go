// Package execution implements the terminal and python_execute tools on top
// of the sandbox runner.
package execution

import (
	"context"
	"fmt"
	"strings"

	"github.com/ChamsBouzaiene/omni/internal/engine"
	"github.com/ChamsBouzaiene/omni/internal/sandbox"
)

const terminalSchema = `{
	"type": "object",
	"properties": {
		"command": {
			"type": "string",
			"description": "Shell command to run in the workspace."
		}
	},
	"required": ["command"]
}`

// Terminal builds the shell execution tool. Commands run inside workDir via
// the sandbox runner.
func Terminal(runner sandbox.Runner, workDir string) engine.Tool {
	return engine.Tool{
		Name:        "terminal",
		Description: "Run a shell command in the workspace and return its output and exit code.",
		SchemaJSON:  terminalSchema,
		SideEffect:  true,
		Instructions: "Commands run non-interactively with a timeout. " +
			"Long-running or interactive commands will be killed; prefer short, scriptable invocations.",
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			command, _ := args["command"].(string)
			if strings.TrimSpace(command) == "" {
				return nil, fmt.Errorf("command must not be empty")
			}
			res, err := runner.Run(ctx, workDir, "sh", []string{"-c", command}, 0)
			if err != nil {
				return nil, fmt.Errorf("command failed to start: %w", err)
			}
			return renderResult(res), nil
		},
	}
}

const pythonSchema = `{
	"type": "object",
	"properties": {
		"code": {
			"type": "string",
			"description": "Python source to execute."
		}
	},
	"required": ["code"]
}`

// PythonExecute builds the python execution tool. Only printed output is
// visible, matching how the model expects a REPL-less interpreter to behave.
func PythonExecute(runner sandbox.Runner, workDir string) engine.Tool {
	return engine.Tool{
		Name:        "python_execute",
		Description: "Execute Python code and return what it prints. Use print() for any value you need to see.",
		SchemaJSON:  pythonSchema,
		SideEffect:  true,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			code, _ := args["code"].(string)
			if strings.TrimSpace(code) == "" {
				return nil, fmt.Errorf("code must not be empty")
			}
			res, err := runner.Run(ctx, workDir, "python3", []string{"-c", code}, 0)
			if err != nil {
				return nil, fmt.Errorf("python failed to start: %w", err)
			}
			return renderResult(res), nil
		},
	}
}

// renderResult folds a sandbox result into one tool output string. Non-zero
// exits and timeouts come back as output the model can react to, not as
// handler errors, so they are never retried.
func renderResult(res sandbox.Result) *engine.ToolResult {
	if res.TimedOut {
		return &engine.ToolResult{Error: "command timed out"}
	}

	var b strings.Builder
	if res.Stdout != "" {
		b.WriteString(res.Stdout)
	}
	if res.Stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("stderr: " + res.Stderr)
	}
	if res.Code != 0 {
		return &engine.ToolResult{Error: fmt.Sprintf("exit code %d\n%s", res.Code, b.String())}
	}
	if b.Len() == 0 {
		return &engine.ToolResult{Output: "(no output)"}
	}
	return &engine.ToolResult{Output: b.String()}
}
