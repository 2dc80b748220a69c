// Package sandbox executes shell and python commands for the agent's
// execution tools, in a locked-down Docker container when the daemon is
// reachable, on the host otherwise.
package sandbox

import (
	"context"
	"log"
	"os/exec"
	"time"
)

const defaultTimeout = 2 * time.Minute

// Result captures the output of one command.
type Result struct {
	Stdout   string
	Stderr   string
	Code     int
	TimedOut bool
}

// Runner executes a command inside workDir with a timeout.
type Runner interface {
	Run(ctx context.Context, workDir, name string, args []string, timeout time.Duration) (Result, error)
}

// Options configures the sandbox.
type Options struct {
	Image       string        // container image, default python:3.12-slim
	MemoryLimit string        // human size, e.g. "512m"
	Timeout     time.Duration // default per-command timeout
	Network     bool          // allow container network access
}

// NewRunner returns a Docker runner when the daemon answers, otherwise the
// host runner. Host execution has no isolation; the fallback is logged.
func NewRunner(opts Options) Runner {
	if dockerAvailable() {
		r, err := NewDockerRunner(opts)
		if err == nil {
			return r
		}
		log.Printf("docker runner unavailable, using host execution: %v", err)
	} else {
		log.Printf("docker daemon not reachable, using host execution (no isolation)")
	}
	return &HostRunner{opts: opts}
}

func dockerAvailable() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return exec.CommandContext(ctx, "docker", "ps").Run() == nil
}
