package sandbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner lets the pipeline be exercised without an interpreter.
type mockRunner struct {
	report *Report
	err    error
	delay  time.Duration

	calls       int
	lastHarness string
	lastLimits  Limits
}

func (m *mockRunner) Run(_ context.Context, harness string, limits Limits) (*Report, error) {
	m.calls++
	m.lastHarness = harness
	m.lastLimits = limits
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.report, m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExecuteRejectsBeforeSpawning(t *testing.T) {
	runner := &mockRunner{}
	sb := New(runner, discardLogger())

	result := sb.Execute(context.Background(), Request{Code: "import os"})

	assert.False(t, result.Success)
	assert.Equal(t, ErrorTypeSecurity, result.ErrorType)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, 0, runner.calls, "a rejected submission must never reach the runner")
}

func TestExecuteTimeout(t *testing.T) {
	runner := &mockRunner{err: fmt.Errorf("killed: %w", ErrTimeLimit)}
	sb := New(runner, discardLogger())

	result := sb.Execute(context.Background(), Request{Code: "x = sum(range(10**8))"})

	assert.False(t, result.Success)
	assert.Equal(t, ErrorTypeTimeout, result.ErrorType)
	assert.Contains(t, result.Error, "time limit")
}

func TestExecuteSystemErrorIsGeneric(t *testing.T) {
	runner := &mockRunner{err: errors.New("fork/exec /usr/bin/python3: no such file or directory")}
	sb := New(runner, discardLogger())

	result := sb.Execute(context.Background(), Request{Code: "print(1)"})

	assert.False(t, result.Success)
	assert.Equal(t, ErrorTypeSystem, result.ErrorType)
	// The underlying fault is logged, never echoed to the submitter.
	assert.NotContains(t, result.Error, "python3")
	assert.NotContains(t, result.Error, "/usr/bin")
}

func TestExecuteImportHookRejection(t *testing.T) {
	runner := &mockRunner{
		report: &Report{
			Error: &ReportError{Kind: "security", Message: "import of module 'hashlib' is not allowed"},
		},
		delay: 10 * time.Millisecond,
	}
	sb := New(runner, discardLogger())

	// hashlib passes the lexical scan; the in-interpreter hook catches it.
	result := sb.Execute(context.Background(), Request{Code: "import hashlib"})

	assert.False(t, result.Success)
	assert.Equal(t, ErrorTypeSecurity, result.ErrorType)
	assert.Contains(t, result.Error, "hashlib")
	// Execution began before the hook fired, so the elapsed time is reported.
	assert.Greater(t, result.ExecutionTime, 0.0)
}

func TestExecuteCompileFailure(t *testing.T) {
	runner := &mockRunner{report: &Report{
		Error: &ReportError{
			Kind:      "execution",
			Message:   "submission failed to compile",
			Traceback: "SyntaxError: invalid syntax",
		},
	}}
	sb := New(runner, discardLogger())

	result := sb.Execute(context.Background(), Request{Code: "def broken(:"})

	assert.False(t, result.Success)
	assert.Equal(t, ErrorTypeExecution, result.ErrorType)
	assert.Contains(t, result.Traceback, "SyntaxError")
}

func TestExecuteSuccess(t *testing.T) {
	cases := []TestCase{
		{Name: "adds", TestCode: "print(add(2, 3))", ExpectedOutput: "5"},
		{TestCode: "print(add(0, 0))", ExpectedOutput: "1"},
	}
	runner := &mockRunner{report: &Report{
		Stdout:     "ready\n",
		MemoryUsed: 9 << 20,
		Tests: []TestOutput{
			{Name: "adds", Output: "5\n"},
			{Output: "0\n"},
		},
	}}
	sb := New(runner, discardLogger())

	result := sb.Execute(context.Background(), Request{
		Code:      "def add(a, b): return a + b\nprint('ready')",
		TestCases: cases,
	})

	require.True(t, result.Success)
	assert.Equal(t, "ready\n", result.Stdout)
	assert.Equal(t, int64(9<<20), result.MemoryUsed)
	require.Len(t, result.TestResults, 2)
	assert.True(t, result.TestResults[0].Passed)
	assert.False(t, result.TestResults[1].Passed, "0 must not match expected 1")
}

func TestExecuteAbsorbsRuntimeExceptions(t *testing.T) {
	runner := &mockRunner{report: &Report{
		Stderr: "Traceback (most recent call last):\nZeroDivisionError: division by zero\n",
	}}
	sb := New(runner, discardLogger())

	result := sb.Execute(context.Background(), Request{Code: "1 / 0"})

	// A learner's crash is an expected outcome: the sandbox itself worked.
	assert.True(t, result.Success)
	assert.Empty(t, result.ErrorType)
	assert.Contains(t, result.Stderr, "ZeroDivisionError")
}

func TestExecutePassesResolvedLimitsToRunner(t *testing.T) {
	runner := &mockRunner{report: &Report{}}
	sb := New(runner, discardLogger())

	sb.Execute(context.Background(), Request{
		Code:             "print(1)",
		TimeLimitSeconds: 5,
		MemoryLimitBytes: 64 << 20,
	})

	require.Equal(t, 1, runner.calls)
	assert.Equal(t, 5*time.Second, runner.lastLimits.TimeLimit)
	assert.Equal(t, int64(64<<20), runner.lastLimits.MemoryLimit)
	assert.Contains(t, runner.lastHarness, "_resource.setrlimit")
}

func TestResultJSONShapeIsStable(t *testing.T) {
	runner := &mockRunner{report: &Report{}}
	sb := New(runner, discardLogger())

	// A successful run that printed nothing still serializes the full success
	// shape; clients key off these fields being present.
	result := sb.Execute(context.Background(), Request{Code: "pass"})
	require.True(t, result.Success)

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	for _, key := range []string{"success", "stdout", "stderr", "execution_time", "memory_used"} {
		assert.Contains(t, fields, key)
	}
	assert.NotContains(t, fields, "error")
	assert.NotContains(t, fields, "error_type")
}

func TestExecuteDefaultsLimits(t *testing.T) {
	runner := &mockRunner{report: &Report{}}
	sb := New(runner, discardLogger())

	sb.Execute(context.Background(), Request{Code: "print(1)"})

	assert.Equal(t, DefaultTimeLimit, runner.lastLimits.TimeLimit)
	assert.Equal(t, int64(DefaultMemoryLimit), runner.lastLimits.MemoryLimit)
}
