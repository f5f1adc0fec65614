package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/rahin/codelab/internal/apperror"
	"github.com/rahin/codelab/internal/model"
	"github.com/rahin/codelab/internal/repository"
)

// Compile-time check that *DB satisfies the repository interface.
var _ repository.ExecutionRepository = (*DB)(nil)

// Create inserts a new execution record. The generated ID and timestamp are
// written back into the caller's struct.
func (db *DB) Create(ctx context.Context, execution *model.Execution) error {
	// xid IDs are short, URL-safe, and sort by creation time.
	execution.ID = xid.New().String()
	execution.CreatedAt = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO executions
		 (id, code, success, error_type, stdout, stderr, execution_time, tests_passed, tests_total, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		execution.ID,
		execution.Code,
		execution.Success,
		execution.ErrorType,
		execution.Stdout,
		execution.Stderr,
		execution.ExecutionTime,
		execution.TestsPassed,
		execution.TestsTotal,
		execution.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating execution: %w", err)
	}

	return nil
}

// GetByID retrieves a single execution record by its ID.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Execution, error) {
	var e model.Execution

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, code, success, error_type, stdout, stderr, execution_time, tests_passed, tests_total, created_at
		 FROM executions
		 WHERE id = ?`,
		id,
	).Scan(
		&e.ID,
		&e.Code,
		&e.Success,
		&e.ErrorType,
		&e.Stdout,
		&e.Stderr,
		&e.ExecutionTime,
		&e.TestsPassed,
		&e.TestsTotal,
		&e.CreatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("execution", id)
		}
		return nil, fmt.Errorf("sqlite: getting execution %s: %w", id, err)
	}

	return &e, nil
}

// List retrieves execution records, newest first, with pagination.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Execution, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, code, success, error_type, stdout, stderr, execution_time, tests_passed, tests_total, created_at
		 FROM executions
		 ORDER BY created_at DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing executions: %w", err)
	}
	defer rows.Close()

	executions := make([]model.Execution, 0, limit)

	for rows.Next() {
		var e model.Execution
		if err := rows.Scan(
			&e.ID, &e.Code, &e.Success, &e.ErrorType,
			&e.Stdout, &e.Stderr, &e.ExecutionTime,
			&e.TestsPassed, &e.TestsTotal, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning execution row: %w", err)
		}
		executions = append(executions, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating executions: %w", err)
	}

	return executions, nil
}
