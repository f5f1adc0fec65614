// Package sandbox executes untrusted learner-submitted Python code under
// layered restrictions and scores it against caller-supplied test cases.
//
// THE LAYERED DEFENCE MODEL:
// No single mechanism makes running hostile code safe, so the pipeline stacks
// several independent ones:
//
//  1. Static validation — a cheap lexical scan that rejects obviously
//     dangerous submissions before anything is spawned (validate.go).
//  2. OS resource ceilings — address space, CPU time, process count and
//     output file size limits applied to the interpreter process before the
//     submission runs (limits.go, harness.go).
//  3. A restricted namespace — the submission only ever sees an allowlisted
//     set of builtins and importable modules (env.go).
//  4. A wall-clock deadline — a supervisor kills the interpreter's process
//     group if it outlives its budget (the Runner implementations).
//
// Each layer assumes the others can fail. The static scan is trivially
// bypassable; the rlimits catch what it misses. The namespace blocks file
// and network access; the process boundary contains whatever slips through.
// An outer container/VM boundary is still expected around the whole thing —
// this package layers on top of it, it does not replace it.
//
// Every invocation is self-contained: a fresh namespace, a fresh interpreter
// process, fresh limits. Nothing is cached or shared between submissions, so
// one learner's code can never observe another's.
package sandbox

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrTimeLimit is returned by a Runner when the submission was forcibly
// stopped because it exceeded its wall-clock or CPU-time budget.
var ErrTimeLimit = errors.New("time limit exceeded")

// Request describes one code submission. It is created by the caller per
// invocation and never retained by this package.
type Request struct {
	Code             string     `json:"code"`
	TestCases        []TestCase `json:"test_cases,omitempty"`
	TimeLimitSeconds int        `json:"time_limit_seconds,omitempty"`
	MemoryLimitBytes int64      `json:"memory_limit_bytes,omitempty"`
}

// TestCase is a snippet executed against the already-populated namespace,
// typically calling a function the submission defined. The captured stdout is
// compared to ExpectedOutput after trimming surrounding whitespace.
type TestCase struct {
	Name           string `json:"name,omitempty"`
	TestCode       string `json:"test_code"`
	ExpectedOutput string `json:"expected_output"`
}

// TestResult reports the outcome of a single test case. Either the
// expected/actual pair is populated, or Error carries the exception raised
// while replaying the submission or running the snippet.
type TestResult struct {
	TestNumber     int    `json:"test_number"`
	Passed         bool   `json:"passed"`
	ExpectedOutput string `json:"expected_output,omitempty"`
	ActualOutput   string `json:"actual_output,omitempty"`
	Error          string `json:"error,omitempty"`
	TestName       string `json:"test_name"`
}

// Error type discriminators for failed executions, as surfaced to callers.
const (
	ErrorTypeSecurity  = "security"
	ErrorTypeTimeout   = "timeout"
	ErrorTypeExecution = "execution"
	ErrorTypeSystem    = "system"
)

// Result is the single structured outcome shape for every execution. Exactly
// one of the two forms is populated:
//
//   - Success true: Stdout/Stderr/ExecutionTime/MemoryUsed/TestResults.
//     Note that a submission which raised an exception is still a Success —
//     the traceback lands in Stderr. A learner's broken code is an expected
//     outcome; the sandbox itself worked.
//   - Success false: Error, ErrorType and (for execution failures) Traceback.
type Result struct {
	Success       bool         `json:"success"`
	Stdout        string       `json:"stdout"`
	Stderr        string       `json:"stderr"`
	ExecutionTime float64      `json:"execution_time"`
	MemoryUsed    int64        `json:"memory_used"`
	TestResults   []TestResult `json:"test_results,omitempty"`
	Error         string       `json:"error,omitempty"`
	ErrorType     string       `json:"error_type,omitempty"`
	Traceback     string       `json:"traceback,omitempty"`
}

// Runner supervises one interpreter process executing the rendered harness.
// Implementations must enforce the wall-clock deadline themselves (returning
// an error wrapping ErrTimeLimit) because a hung interpreter cannot be
// trusted to report anything. The process runner executes python3 directly;
// the docker runner adds a container as the outer isolation boundary.
type Runner interface {
	Run(ctx context.Context, harness string, limits Limits) (*Report, error)
}

// Sandbox wires the pipeline stages together in front of a Runner.
type Sandbox struct {
	runner Runner
	logger *slog.Logger
}

// New creates a Sandbox backed by the given runner.
func New(runner Runner, logger *slog.Logger) *Sandbox {
	return &Sandbox{
		runner: runner,
		logger: logger,
	}
}

// Execute runs one submission through the full pipeline:
// validate → limit → build environment → run → score tests → assemble.
//
// Execute never returns an error. Every failure mode — hostile input, a
// timed-out loop, a crashed interpreter — is folded into a well-typed Result,
// because an unhandled error escaping the sandbox boundary is itself a
// disclosure risk (stack traces leak host details). The worst case a caller
// can observe is a generic system-type failure.
func (s *Sandbox) Execute(ctx context.Context, req Request) *Result {
	// Layer 1: reject obviously dangerous source before spawning anything.
	if v := Validate(req.Code); v != nil {
		s.logger.Warn("submission rejected by static validator",
			slog.String("pattern", v.Pattern),
		)
		return securityViolation(v.Error(), 0)
	}

	limits := req.Limits()

	// A fresh environment per invocation: no allowlist state, and therefore
	// no submission-visible state, survives from one execution to the next.
	env := NewEnvironment()
	harness, err := BuildHarness(env, req.Code, req.TestCases, limits)
	if err != nil {
		s.logger.Error("failed to build harness", slog.String("error", err.Error()))
		return systemFailure(0)
	}

	start := time.Now()
	report, err := s.runner.Run(ctx, harness, limits)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		if errors.Is(err, ErrTimeLimit) {
			s.logger.Info("submission exceeded time limit",
				slog.Duration("limit", limits.TimeLimit),
				slog.Float64("elapsed", elapsed),
			)
			return timeoutFailure(limits, elapsed)
		}
		// Harness or interpreter-level fault. Log the detail, return a
		// deliberately generic message.
		s.logger.Error("sandbox run failed", slog.String("error", err.Error()))
		return systemFailure(elapsed)
	}

	// Layer 3 tripped at runtime: the guarded import hook rejected a module
	// the static scan did not catch. Same outcome as a validator rejection.
	if report.Error != nil {
		switch report.Error.Kind {
		case reportErrorSecurity:
			s.logger.Warn("submission rejected by import hook",
				slog.String("reason", report.Error.Message),
			)
			return securityViolation(report.Error.Message, elapsed)
		default:
			// The submission failed to compile. Unlike a runtime exception
			// (absorbed into stderr), nothing ever executed, so this is
			// reported as an execution failure.
			return executionFailure(report.Error.Message, report.Error.Traceback, elapsed)
		}
	}

	result := &Result{
		Success:       true,
		Stdout:        report.Stdout,
		Stderr:        report.Stderr,
		ExecutionTime: elapsed,
		MemoryUsed:    report.MemoryUsed,
		TestResults:   EvaluateTests(req.TestCases, report.Tests),
	}

	s.logger.Info("submission executed",
		slog.Float64("seconds", elapsed),
		slog.Int64("memoryBytes", report.MemoryUsed),
		slog.Int("testCases", len(req.TestCases)),
	)

	return result
}
