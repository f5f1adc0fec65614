// Package docker runs the sandbox harness inside disposable containers.
//
// This is the deployed shape of the outer isolation boundary the sandbox
// component expects around itself: the same harness that the process runner
// executes directly runs here inside a network-less, read-only,
// resource-capped container, one container per invocation. The in-harness
// restrictions (allowlisted namespace, rlimits) still apply inside — the
// container is the layer underneath them, not a replacement for them.
package docker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/rahin/codelab/internal/sandbox"
)

// sigxcpu is the signal number the kernel delivers when the soft RLIMIT_CPU
// is exceeded. Named here rather than imported: the docker client is the only
// dependency this package needs, and the number is fixed by Linux.
const sigxcpu = 24

// Runner implements sandbox.Runner using one pooled container per run.
type Runner struct {
	cli    *client.Client
	config Config
	logger *slog.Logger
	pool   *Pool
}

var _ sandbox.Runner = (*Runner)(nil)

// New creates a container Runner, pulls the image, and starts the warm pool.
func New(cfg Config, logger *slog.Logger) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	// Make sure the image is pulled before accepting work.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	logger.Info("ensuring sandbox image is available", slog.String("image", cfg.Image))
	reader, err := cli.ImagePull(ctx, cfg.Image, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image: %w", err)
	}
	defer reader.Close()
	// Read everything to block until the pull is complete.
	io.Copy(io.Discard, reader)
	logger.Info("sandbox image is ready")

	r := &Runner{
		cli:    cli,
		config: cfg,
		logger: logger,
	}

	r.pool = NewPool(cli, cfg, logger)
	r.pool.Start()

	return r, nil
}

// Close shuts down the container pool and docker client.
func (r *Runner) Close() error {
	r.pool.Stop()
	return r.cli.Close()
}

// Run executes the harness inside a pre-warmed container and parses its
// report. The container is always removed afterwards, whatever happened —
// a submission never runs in a container another submission has touched.
func (r *Runner) Run(ctx context.Context, harness string, limits sandbox.Limits) (*sandbox.Report, error) {
	containerID, err := r.pool.GetContainer(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container from pool: %w", err)
	}

	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := r.cli.ContainerRemove(cleanupCtx, containerID, container.RemoveOptions{
			Force: true,
		})
		if err != nil {
			r.logger.Error("failed to remove container",
				slog.String("id", containerID),
				slog.String("error", err.Error()),
			)
		}
	}()

	// The wall-clock deadline for this one submission, plus exec overhead.
	executeCtx, executeCancel := context.WithTimeout(ctx, limits.TimeLimit+r.config.StartupGrace)
	defer executeCancel()

	execConfig := container.ExecOptions{
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          []string{"python3", "-I", "-B", "-c", harness},
	}

	execResp, err := r.cli.ContainerExecCreate(executeCtx, containerID, execConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec: %w", err)
	}

	attachResp, err := r.cli.ContainerExecAttach(executeCtx, execResp.ID, container.ExecStartOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach to exec: %w", err)
	}
	defer attachResp.Close()

	var stdout, stderr bytes.Buffer

	done := make(chan struct{})
	go func() {
		// stdcopy demultiplexes the container's stdout from its stderr.
		_, _ = stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader)
		close(done)
	}()

	select {
	case <-done:
		// Completed within the deadline. A process killed by the in-harness
		// CPU ceiling dies of SIGXCPU before it can emit a report; the exec
		// exit code (128+signal) is the only way to tell that apart from a
		// crash.
		inspectResp, inspectErr := r.cli.ContainerExecInspect(executeCtx, execResp.ID)
		if inspectErr == nil && inspectResp.ExitCode == 128+sigxcpu {
			return nil, fmt.Errorf("cpu time ceiling: %w", sandbox.ErrTimeLimit)
		}
	case <-executeCtx.Done():
		// The container removal in the deferred cleanup tears the exec'd
		// process down with it.
		if errors.Is(executeCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("wall clock deadline: %w", sandbox.ErrTimeLimit)
		}
		return nil, fmt.Errorf("execution cancelled: %w", executeCtx.Err())
	}

	report, err := sandbox.ParseReport(bytes.TrimSpace(stdout.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w (container stderr: %.512s)", err, stderr.String())
	}
	return report, nil
}
