package sandbox

import (
	"fmt"
	"strings"
)

// Result assembly: every terminal condition of the pipeline is mapped onto
// the one tagged Result shape here, so callers always receive a well-typed
// value — including under attack, malformed input, or a harness crash.

// securityViolation covers both rejection points: the static validator
// (elapsed 0, nothing ever ran) and the in-interpreter import hook (elapsed
// reflects how long the submission ran before tripping it).
func securityViolation(message string, elapsed float64) *Result {
	return &Result{
		Success:       false,
		Error:         message,
		ErrorType:     ErrorTypeSecurity,
		ExecutionTime: elapsed,
	}
}

func timeoutFailure(limits Limits, elapsed float64) *Result {
	return &Result{
		Success:       false,
		Error:         fmt.Sprintf("execution exceeded the %s time limit", limits.TimeLimit),
		ErrorType:     ErrorTypeTimeout,
		ExecutionTime: elapsed,
	}
}

func executionFailure(message, traceback string, elapsed float64) *Result {
	return &Result{
		Success:       false,
		Error:         message,
		ErrorType:     ErrorTypeExecution,
		Traceback:     traceback,
		ExecutionTime: elapsed,
	}
}

// systemFailure deliberately carries no detail. The underlying error is
// logged server-side; echoing it to the submitter could leak host paths or
// configuration.
func systemFailure(elapsed float64) *Result {
	return &Result{
		Success:       false,
		Error:         "an internal error occurred while executing the code",
		ErrorType:     ErrorTypeSystem,
		ExecutionTime: elapsed,
	}
}

// EvaluateTests scores the harness's captured test outputs against the
// caller's expectations, preserving input order. Comparison is exact
// byte-for-byte equality after trimming surrounding whitespace — "5\n"
// matches "5", but "05" never matches "5". A test whose replay or snippet
// raised is reported with its error and never aborts the remaining cases.
func EvaluateTests(cases []TestCase, outputs []TestOutput) []TestResult {
	if len(cases) == 0 {
		return nil
	}

	results := make([]TestResult, 0, len(cases))
	for i, tc := range cases {
		result := TestResult{
			TestNumber: i + 1,
			TestName:   tc.Name,
		}
		if result.TestName == "" {
			result.TestName = fmt.Sprintf("test %d", i+1)
		}

		switch {
		case i >= len(outputs):
			// The harness never reached this case; only possible if it was
			// cut down mid-run, in which case the run already failed.
			result.Error = "no output recorded for this test case"
		case outputs[i].Error != "":
			result.Error = outputs[i].Error
		default:
			expected := strings.TrimSpace(tc.ExpectedOutput)
			actual := strings.TrimSpace(outputs[i].Output)
			result.Passed = expected == actual
			result.ExpectedOutput = expected
			result.ActualOutput = actual
		}

		results = append(results, result)
	}
	return results
}
