package sandbox

import (
	"encoding/json"
	"fmt"
)

// Report error kinds emitted by the harness preamble.
const (
	reportErrorSecurity = "security"
)

// Report is the JSON document the harness writes to the real stdout once the
// submission (and any test cases) have run. Runners parse it and hand it
// back; they never interpret the submission's own output themselves.
type Report struct {
	Stdout     string       `json:"stdout"`
	Stderr     string       `json:"stderr"`
	MemoryUsed int64        `json:"memory_used"`
	Tests      []TestOutput `json:"tests"`
	Error      *ReportError `json:"error,omitempty"`
}

// TestOutput is the raw captured outcome of one test case, before the
// expected/actual comparison happens on the Go side.
type TestOutput struct {
	Name   string `json:"name"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// ReportError is an early-abort condition the harness hit before (security)
// or instead of (compile failure) running the submission to completion.
type ReportError struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Traceback string `json:"traceback,omitempty"`
}

// ParseReport decodes the harness report from the interpreter's captured
// stdout. An empty or malformed document means the harness itself died —
// typically a resource ceiling firing during startup — and is a system-level
// fault, not a submission outcome.
func ParseReport(raw []byte) (*Report, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("harness produced no report")
	}
	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, fmt.Errorf("decoding harness report: %w", err)
	}
	return &report, nil
}
