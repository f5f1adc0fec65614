// Package service contains the business logic of the host: request
// validation, invoking the sandbox, and recording outcomes.
//
// The layering mirrors the rest of the app: handlers parse HTTP and call the
// service; the service knows nothing about HTTP and talks to the sandbox and
// the repository through interfaces, so tests can swap either for a mock.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rahin/codelab/internal/apperror"
	"github.com/rahin/codelab/internal/model"
	"github.com/rahin/codelab/internal/repository"
	"github.com/rahin/codelab/internal/sandbox"
)

// Validation bounds for incoming submissions. The per-request resource
// overrides are capped so a caller cannot ask the sandbox to hold a worker
// for minutes or hand it gigabytes of address space.
const (
	MaxCodeBytes        = 100_000 // ~100KB of source
	MaxTestCases        = 50
	MaxTimeLimitSeconds = 120
	MaxMemoryLimitBytes = 512 << 20
)

// Executor is the sandbox surface the service depends on. *sandbox.Sandbox
// satisfies it; tests substitute a mock.
type Executor interface {
	Execute(ctx context.Context, req sandbox.Request) *sandbox.Result
}

// ExecutionService validates submissions, runs them, and keeps a record of
// every run. Persistence is best-effort: a learner still gets their result
// even if the history write fails.
type ExecutionService struct {
	sandbox Executor
	repo    repository.ExecutionRepository
	logger  *slog.Logger
}

// NewExecutionService creates an ExecutionService.
func NewExecutionService(sb Executor, repo repository.ExecutionRepository, logger *slog.Logger) *ExecutionService {
	return &ExecutionService{
		sandbox: sb,
		repo:    repo,
		logger:  logger,
	}
}

// Run validates and executes one submission, records the outcome, and
// returns the sandbox result. Validation failures are returned as domain
// errors; sandbox failures are not errors at all — they come back inside the
// Result, typed, exactly as the sandbox produced them.
func (s *ExecutionService) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	if strings.TrimSpace(req.Code) == "" {
		return nil, apperror.ValidationFailed("code", "code is required")
	}
	if len(req.Code) > MaxCodeBytes {
		return nil, apperror.ValidationFailed("code",
			fmt.Sprintf("code must be %d bytes or less", MaxCodeBytes))
	}
	if len(req.TestCases) > MaxTestCases {
		return nil, apperror.ValidationFailed("test_cases",
			fmt.Sprintf("at most %d test cases are allowed", MaxTestCases))
	}
	if req.TimeLimitSeconds < 0 || req.TimeLimitSeconds > MaxTimeLimitSeconds {
		return nil, apperror.ValidationFailed("time_limit_seconds",
			fmt.Sprintf("time limit must be between 1 and %d seconds", MaxTimeLimitSeconds))
	}
	if req.MemoryLimitBytes < 0 || req.MemoryLimitBytes > MaxMemoryLimitBytes {
		return nil, apperror.ValidationFailed("memory_limit_bytes",
			fmt.Sprintf("memory limit must be between 1 and %d bytes", MaxMemoryLimitBytes))
	}
	for i, tc := range req.TestCases {
		if strings.TrimSpace(tc.TestCode) == "" {
			return nil, apperror.ValidationFailed("test_cases",
				fmt.Sprintf("test case %d has no test code", i+1))
		}
	}

	result := s.sandbox.Execute(ctx, req)

	record := recordFromResult(req, result)
	if err := s.repo.Create(ctx, record); err != nil {
		// The learner's result matters more than our bookkeeping.
		s.logger.Error("failed to record execution", slog.String("error", err.Error()))
	}

	return result, nil
}

// List returns recent execution records, newest first.
func (s *ExecutionService) List(ctx context.Context, limit, offset int) ([]model.Execution, error) {
	executions, err := s.repo.List(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing executions: %w", err)
	}
	return executions, nil
}

// GetByID returns a single execution record.
func (s *ExecutionService) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperror.ValidationFailed("id", "execution id is required")
	}
	execution, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting execution %s: %w", id, err)
	}
	return execution, nil
}

// recordFromResult flattens a sandbox result into its persistent form.
func recordFromResult(req sandbox.Request, result *sandbox.Result) *model.Execution {
	record := &model.Execution{
		Code:          req.Code,
		Success:       result.Success,
		ErrorType:     result.ErrorType,
		Stdout:        result.Stdout,
		Stderr:        result.Stderr,
		ExecutionTime: result.ExecutionTime,
		TestsTotal:    len(result.TestResults),
	}
	for _, tr := range result.TestResults {
		if tr.Passed {
			record.TestsPassed++
		}
	}
	return record
}
