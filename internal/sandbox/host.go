//go:build !windows

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"
)

// HostRunner executes commands directly on the host. No isolation; used only
// when Docker is unavailable.
type HostRunner struct {
	opts Options
}

// Run executes one command inside workDir with a timeout.
func (r *HostRunner) Run(ctx context.Context, workDir, name string, args []string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.Command(name, args...)
	cmd.Dir = workDir
	// Own process group so the whole tree dies on timeout.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return Result{}, err
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-cctx.Done():
			if cmd.Process != nil {
				syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)

	res := Result{
		Stdout: stdoutBuf.String(),
		Stderr: stderrBuf.String(),
	}
	timedOut := errors.Is(cctx.Err(), context.DeadlineExceeded)
	res.TimedOut = timedOut

	if waitErr != nil {
		res.Code = 1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.Code = exitErr.ExitCode()
		} else if !timedOut {
			return res, waitErr
		}
		// Timeouts and non-zero exits are reported through the result, not
		// as Go errors, so callers never retry them.
	}
	return res, nil
}
