package sandbox

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/go-units"
)

const defaultImage = "python:3.12-slim"

// DockerRunner executes commands in disposable containers with the
// workspace bind-mounted at /workspace.
type DockerRunner struct {
	cli  *client.Client
	opts Options
}

// NewDockerRunner connects to the Docker daemon and verifies it answers.
func NewDockerRunner(opts Options) (*DockerRunner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := cli.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker daemon not accessible: %w", err)
	}

	if opts.Image == "" {
		opts.Image = defaultImage
	}
	return &DockerRunner{cli: cli, opts: opts}, nil
}

// Run executes one command in a fresh container and tears it down after.
func (r *DockerRunner) Run(ctx context.Context, workDir, name string, args []string, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = r.opts.Timeout
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	if err := r.ensureImage(ctx, r.opts.Image); err != nil {
		return Result{}, fmt.Errorf("ensure image %s: %w", r.opts.Image, err)
	}

	absDir, err := filepath.Abs(workDir)
	if err != nil {
		return Result{}, fmt.Errorf("resolve workspace path: %w", err)
	}

	memLimit := int64(units.GiB)
	if r.opts.MemoryLimit != "" {
		if parsed, err := units.RAMInBytes(r.opts.MemoryLimit); err == nil {
			memLimit = parsed
		}
	}

	containerCfg := &container.Config{
		Image:           r.opts.Image,
		Cmd:             append([]string{name}, args...),
		WorkingDir:      "/workspace",
		Env:             []string{"HOME=/tmp"},
		NetworkDisabled: !r.opts.Network,
	}
	hostCfg := &container.HostConfig{
		Mounts: []mount.Mount{{
			Type:   mount.TypeBind,
			Source: absDir,
			Target: "/workspace",
		}},
		Resources: container.Resources{
			Memory: memLimit,
			Ulimits: []*units.Ulimit{
				{Name: "nofile", Soft: 1024, Hard: 1024},
			},
		},
		SecurityOpt: []string{"no-new-privileges"},
		CapDrop:     []string{"ALL"},
		Tmpfs: map[string]string{
			"/tmp": "rw,nosuid,size=100m",
		},
	}

	created, err := r.cli.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("create container: %w", err)
	}
	containerID := created.ID

	defer func() {
		rmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.cli.ContainerRemove(rmCtx, containerID, container.RemoveOptions{Force: true})
	}()

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := r.cli.ContainerStart(execCtx, containerID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("start container: %w", err)
	}

	statusCh, errCh := r.cli.ContainerWait(execCtx, containerID, container.WaitConditionNotRunning)

	var exitCode int64
	select {
	case <-execCtx.Done():
		killCtx, killCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer killCancel()
		_ = r.cli.ContainerKill(killCtx, containerID, "SIGKILL")
		return Result{Code: 1, TimedOut: true, Stderr: "command timed out"}, nil
	case err := <-errCh:
		if err != nil {
			return Result{}, fmt.Errorf("container wait: %w", err)
		}
	case status := <-statusCh:
		exitCode = status.StatusCode
	}

	logs, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       "all",
	})
	if err != nil {
		return Result{}, fmt.Errorf("read container logs: %w", err)
	}
	defer logs.Close()

	stdout, stderr := demuxLogs(logs)
	return Result{
		Stdout: stdout,
		Stderr: stderr,
		Code:   int(exitCode),
	}, nil
}

func (r *DockerRunner) ensureImage(ctx context.Context, name string) error {
	if _, _, err := r.cli.ImageInspectWithRaw(ctx, name); err == nil {
		return nil
	}
	reader, err := r.cli.ImagePull(ctx, name, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// demuxLogs splits Docker's multiplexed log stream. Each frame carries an
// 8-byte header: stream type, 3 reserved bytes, then a big-endian payload
// size.
func demuxLogs(reader io.Reader) (stdout, stderr string) {
	var outParts, errParts []string

	for {
		header := make([]byte, 8)
		if _, err := io.ReadFull(reader, header); err != nil {
			break
		}
		size := int(header[4])<<24 | int(header[5])<<16 | int(header[6])<<8 | int(header[7])
		if size <= 0 || size > 10*1024*1024 {
			continue
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			break
		}
		content := strings.TrimSuffix(string(payload), "\n")
		switch header[0] {
		case 1:
			outParts = append(outParts, content)
		case 2:
			errParts = append(errParts, content)
		}
	}
	return strings.Join(outParts, "\n"), strings.Join(errParts, "\n")
}
