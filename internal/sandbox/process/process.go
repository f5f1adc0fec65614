// Package process runs the sandbox harness in a directly spawned Python
// interpreter process.
//
// Each invocation gets its own process and its own process group. The wall
// clock deadline is enforced from out here, by killing the whole group —
// never from inside the interpreter, because a hung or hostile submission
// cannot be trusted to honour any in-process cancellation. Killing the group
// (not just the leader) also reaps anything the submission managed to fork
// within its NPROC budget.
//
// The resource ceilings themselves (address space, CPU time, processes, file
// size) are applied by the harness preamble inside the child before any
// untrusted code runs, so they scope to exactly that one process and die
// with it.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rahin/codelab/internal/sandbox"
)

// Config holds the configuration for direct process execution.
type Config struct {
	// PythonBin is the interpreter to spawn.
	PythonBin string
	// StartupGrace is added to the wall-clock deadline to cover interpreter
	// start-up, so a submission that uses its full budget is not unfairly
	// cut down while Python is still booting. The CPU-time rlimit remains
	// the exact per-submission budget.
	StartupGrace time.Duration
	// MaxReportBytes caps how much of the child's stdout/stderr is read.
	// The harness report is small; anything beyond this is a misbehaving
	// process and gets discarded rather than buffered.
	MaxReportBytes int64
}

// DefaultConfig provides sensible defaults for a local Python sandbox.
func DefaultConfig() Config {
	return Config{
		PythonBin:      "python3",
		StartupGrace:   2 * time.Second,
		MaxReportBytes: 4 << 20,
	}
}

// Runner implements sandbox.Runner by supervising one python3 process per
// invocation.
type Runner struct {
	cfg    Config
	logger *slog.Logger
}

var _ sandbox.Runner = (*Runner)(nil)

// New creates a process Runner.
func New(cfg Config, logger *slog.Logger) *Runner {
	return &Runner{cfg: cfg, logger: logger}
}

// Run spawns the interpreter on the harness and supervises it until it
// reports, times out, or dies. Returns an error wrapping sandbox.ErrTimeLimit
// when either the wall-clock deadline or the kernel CPU ceiling cut the
// process down.
func (r *Runner) Run(ctx context.Context, harness string, limits sandbox.Limits) (*sandbox.Report, error) {
	// -I: isolated mode — ignore environment variables and user site dirs.
	// -B: never write bytecode cache files.
	cmd := exec.Command(r.cfg.PythonBin, "-I", "-B", "-c", harness)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &capWriter{w: &stdout, remaining: r.cfg.MaxReportBytes}
	cmd.Stderr = &capWriter{w: &stderr, remaining: r.cfg.MaxReportBytes}

	// Own process group, so the deadline kill below reaches any children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting interpreter: %w", err)
	}
	pgid := cmd.Process.Pid

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	deadline := time.NewTimer(limits.TimeLimit + r.cfg.StartupGrace)
	defer deadline.Stop()

	var waitErr error
	select {
	case waitErr = <-done:
		// Fell through on its own; classified below.
	case <-deadline.C:
		r.killGroup(pgid)
		<-done
		return nil, fmt.Errorf("wall clock deadline: %w", sandbox.ErrTimeLimit)
	case <-ctx.Done():
		r.killGroup(pgid)
		<-done
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	}

	r.logUsage(cmd)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("waiting for interpreter: %w", waitErr)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			// SIGXCPU is the kernel's RLIMIT_CPU firing: the complementary
			// timeout layer that catches CPU-bound loops even when the wall
			// clock has headroom left.
			if status.Signal() == unix.SIGXCPU {
				return nil, fmt.Errorf("cpu time ceiling: %w", sandbox.ErrTimeLimit)
			}
			return nil, fmt.Errorf("interpreter killed by signal %s", status.Signal())
		}
		// A nonzero exit with a valid report on stdout is still usable;
		// fall through to the parse.
	}

	report, err := sandbox.ParseReport(bytes.TrimSpace(stdout.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("%w (interpreter stderr: %s)", err, truncate(stderr.String(), 512))
	}
	return report, nil
}

// killGroup force-kills the child's entire process group.
func (r *Runner) killGroup(pgid int) {
	if err := unix.Kill(-pgid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		r.logger.Error("failed to kill sandbox process group",
			slog.Int("pgid", pgid),
			slog.String("error", err.Error()),
		)
	}
}

// logUsage records the reaped child's kernel-reported resource usage.
func (r *Runner) logUsage(cmd *exec.Cmd) {
	state := cmd.ProcessState
	if state == nil {
		return
	}
	usage, ok := state.SysUsage().(*syscall.Rusage)
	if !ok {
		return
	}
	utime := time.Duration(usage.Utime.Sec)*time.Second + time.Duration(usage.Utime.Usec)*time.Microsecond
	stime := time.Duration(usage.Stime.Sec)*time.Second + time.Duration(usage.Stime.Usec)*time.Microsecond
	r.logger.Debug("interpreter resource usage",
		slog.Duration("cpuTime", utime+stime),
		slog.Int64("maxRSSKiB", int64(usage.Maxrss)),
	)
}

// capWriter writes at most `remaining` bytes into w and silently discards
// the rest. Discarding (instead of blocking) keeps a flooding child from
// deadlocking against a full pipe; the deadline or FSIZE ceiling deals with
// the child itself.
type capWriter struct {
	w         io.Writer
	remaining int64
}

func (c *capWriter) Write(p []byte) (int, error) {
	n := len(p)
	if c.remaining <= 0 {
		return n, nil
	}
	if int64(n) > c.remaining {
		if _, err := c.w.Write(p[:c.remaining]); err != nil {
			return 0, err
		}
		c.remaining = 0
		return n, nil
	}
	if _, err := c.w.Write(p); err != nil {
		return 0, err
	}
	c.remaining -= int64(n)
	return n, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
