package process_test

import (
	"context"
	"io"
	"log/slog"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahin/codelab/internal/sandbox"
	"github.com/rahin/codelab/internal/sandbox/process"
)

// These are integration tests: they spawn real python3 processes. They skip
// automatically when no interpreter is on PATH.
func newTestSandbox(t *testing.T) *sandbox.Sandbox {
	t.Helper()
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available, skipping interpreter integration tests")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return sandbox.New(process.New(process.DefaultConfig(), logger), logger)
}

func TestRunHelloWorld(t *testing.T) {
	sb := newTestSandbox(t)

	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "print('Hello World')",
	})

	require.True(t, result.Success, "error: %s", result.Error)
	assert.Equal(t, "Hello World\n", result.Stdout)
	assert.Empty(t, result.Stderr)
	assert.Greater(t, result.MemoryUsed, int64(0))
	assert.Greater(t, result.ExecutionTime, 0.0)
}

func TestRunAbsorbsRuntimeException(t *testing.T) {
	sb := newTestSandbox(t)

	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "print('before')\n1 / 0",
	})

	require.True(t, result.Success, "a crashing submission is still a completed run")
	assert.Equal(t, "before\n", result.Stdout)
	assert.Contains(t, result.Stderr, "ZeroDivisionError")
}

func TestRunImportHookRejectsUnlistedModule(t *testing.T) {
	sb := newTestSandbox(t)

	// hashlib is not on the lexical denylist, so this submission reaches the
	// interpreter and is stopped by the import hook instead.
	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "import hashlib\nprint(hashlib.sha256(b'x'))",
	})

	require.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeSecurity, result.ErrorType)
	assert.Contains(t, result.Error, "hashlib")
}

func TestRunImportHookSurvivesExceptionHandler(t *testing.T) {
	sb := newTestSandbox(t)

	// The rejection must not be swallowable by a broad except clause.
	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "try:\n    import hashlib\nexcept Exception:\n    pass\nprint('escaped')",
	})

	require.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeSecurity, result.ErrorType)
}

func TestRunAllowlistedModules(t *testing.T) {
	sb := newTestSandbox(t)

	result := sb.Execute(context.Background(), sandbox.Request{
		Code: `import math
import random
import datetime
import collections
import itertools
import functools
import operator
import string
import re
import json
print(math.floor(2.7))
print(json.dumps({"ok": True}))`,
	})

	require.True(t, result.Success, "error: %s, stderr: %s", result.Error, result.Stderr)
	assert.Equal(t, "2\n{\"ok\": true}\n", result.Stdout)
}

func TestRunSyntaxError(t *testing.T) {
	sb := newTestSandbox(t)

	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "def broken(:\n    pass",
	})

	require.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeExecution, result.ErrorType)
	assert.Contains(t, result.Traceback, "SyntaxError")
}

func TestRunCPUBoundLoopTimeout(t *testing.T) {
	sb := newTestSandbox(t)

	start := time.Now()
	result := sb.Execute(context.Background(), sandbox.Request{
		// Bounded, so it passes the validator; far too slow to finish. A
		// CPU-bound loop hits the kernel CPU ceiling (SIGXCPU) before the
		// wall-clock deadline, and both must land on the same timeout type.
		Code:             "x = 0\nfor i in range(10**10):\n    x += i",
		TimeLimitSeconds: 1,
	})
	elapsed := time.Since(start)

	require.False(t, result.Success)
	assert.Equal(t, sandbox.ErrorTypeTimeout, result.ErrorType)
	assert.Less(t, elapsed, 15*time.Second, "the process must be cut down promptly")
}

func TestRunWallClockDeadlineOnIdleProcess(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available, skipping interpreter integration tests")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := process.New(process.DefaultConfig(), logger)

	// A sleeping process burns no CPU, so the kernel CPU ceiling never fires;
	// only the supervisor's wall-clock kill can stop it. Fed to the runner
	// directly so no resource preamble is involved.
	payload := "import time\ntime.sleep(600)"
	limits := sandbox.Limits{TimeLimit: 1 * time.Second, MemoryLimit: sandbox.DefaultMemoryLimit}

	start := time.Now()
	_, err := runner.Run(context.Background(), payload, limits)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.ErrorIs(t, err, sandbox.ErrTimeLimit)
	assert.Less(t, elapsed, 15*time.Second)
}

func TestRunTestCases(t *testing.T) {
	sb := newTestSandbox(t)

	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "def add(a, b):\n    return a + b",
		TestCases: []sandbox.TestCase{
			{Name: "positive", TestCode: "print(add(2, 3))", ExpectedOutput: "5"},
			{Name: "wrong expectation", TestCode: "print(add(2, 2))", ExpectedOutput: "5"},
			{Name: "raises", TestCode: "print(add(1))", ExpectedOutput: "whatever"},
		},
	})

	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.TestResults, 3)

	assert.True(t, result.TestResults[0].Passed)
	assert.Equal(t, "5", result.TestResults[0].ActualOutput)

	assert.False(t, result.TestResults[1].Passed)
	assert.Equal(t, "4", result.TestResults[1].ActualOutput)

	assert.False(t, result.TestResults[2].Passed)
	assert.Contains(t, result.TestResults[2].Error, "TypeError")
}

func TestRunTestCaseIsolation(t *testing.T) {
	sb := newTestSandbox(t)

	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "counter = 0",
		TestCases: []sandbox.TestCase{
			{TestCode: "counter += 1\nprint(counter)", ExpectedOutput: "1"},
			{TestCode: "counter += 1\nprint(counter)", ExpectedOutput: "1"},
		},
	})

	require.True(t, result.Success, "error: %s", result.Error)
	require.Len(t, result.TestResults, 2)
	assert.True(t, result.TestResults[0].Passed)
	assert.True(t, result.TestResults[1].Passed,
		"each case must see a fresh namespace, not the previous case's mutations")
}

func TestRunBlockedBuiltins(t *testing.T) {
	sb := newTestSandbox(t)

	// getattr is lexically denied, so probe it indirectly: it must simply not
	// exist in the namespace.
	result := sb.Execute(context.Background(), sandbox.Request{
		Code: "g = __builtins__.get('get' + 'attr')\nprint(g)",
	})

	require.True(t, result.Success)
	assert.Equal(t, "None\n", result.Stdout)
}

func TestRunCancelledContext(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available, skipping interpreter integration tests")
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	runner := process.New(process.DefaultConfig(), logger)

	harness, err := sandbox.BuildHarness(sandbox.NewEnvironment(),
		"x = 0\nfor i in range(10**10):\n    x += i", nil,
		sandbox.Request{}.Limits())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	_, runErr := runner.Run(ctx, harness, sandbox.Request{}.Limits())
	require.Error(t, runErr)
	assert.ErrorIs(t, runErr, context.DeadlineExceeded)
}
