package execution

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ChamsBouzaiene/omni/internal/engine"
	"github.com/ChamsBouzaiene/omni/internal/sandbox"
)

// fakeRunner returns a canned result and records the invocation.
type fakeRunner struct {
	res  sandbox.Result
	name string
	args []string
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args []string, timeout time.Duration) (sandbox.Result, error) {
	f.name = name
	f.args = args
	return f.res, nil
}

func TestRenderResult(t *testing.T) {
	tests := []struct {
		name       string
		res        sandbox.Result
		wantOutput string
		wantError  string
	}{
		{
			name:       "stdout only",
			res:        sandbox.Result{Stdout: "hello"},
			wantOutput: "hello",
		},
		{
			name:       "stdout and stderr",
			res:        sandbox.Result{Stdout: "out", Stderr: "warn"},
			wantOutput: "out\nstderr: warn",
		},
		{
			name:       "no output",
			res:        sandbox.Result{},
			wantOutput: "(no output)",
		},
		{
			name:      "non-zero exit is an error value",
			res:       sandbox.Result{Stderr: "boom", Code: 2},
			wantError: "exit code 2\nstderr: boom",
		},
		{
			name:      "timeout",
			res:       sandbox.Result{TimedOut: true, Stdout: "partial"},
			wantError: "command timed out",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderResult(tt.res)
			if got.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", got.Output, tt.wantOutput)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestTerminalRunsThroughShell(t *testing.T) {
	r := &fakeRunner{res: sandbox.Result{Stdout: "files"}}
	tool := Terminal(r, "/tmp/ws")

	got, err := tool.Fn(context.Background(), map[string]any{"command": "ls -la"})
	if err != nil {
		t.Fatalf("Fn() error: %v", err)
	}
	if r.name != "sh" || len(r.args) != 2 || r.args[0] != "-c" || r.args[1] != "ls -la" {
		t.Errorf("invoked %s %v", r.name, r.args)
	}
	if got.(*engine.ToolResult).Output != "files" {
		t.Errorf("output = %+v", got)
	}
}

func TestTerminalRejectsEmptyCommand(t *testing.T) {
	tool := Terminal(&fakeRunner{}, "/tmp/ws")
	if _, err := tool.Fn(context.Background(), map[string]any{"command": "   "}); err == nil {
		t.Error("blank command accepted")
	}
}

func TestPythonExecuteInvokesInterpreter(t *testing.T) {
	r := &fakeRunner{res: sandbox.Result{Stdout: "42\n"}}
	tool := PythonExecute(r, "/tmp/ws")

	got, err := tool.Fn(context.Background(), map[string]any{"code": "print(42)"})
	if err != nil {
		t.Fatalf("Fn() error: %v", err)
	}
	if r.name != "python3" || r.args[0] != "-c" || !strings.Contains(r.args[1], "print(42)") {
		t.Errorf("invoked %s %v", r.name, r.args)
	}
	if got.(*engine.ToolResult).Output != "42\n" {
		t.Errorf("output = %+v", got)
	}
}
