// Package repository defines the storage interfaces the service layer
// depends on. Concrete implementations live in subpackages (sqlite) and in
// test mocks — the service never knows which one it got.
package repository

import (
	"context"

	"github.com/rahin/codelab/internal/model"
)

// ListOptions controls pagination for list queries.
type ListOptions struct {
	Limit  int
	Offset int
}

// ExecutionRepository stores the host-side history of sandbox runs.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *model.Execution) error
	GetByID(ctx context.Context, id string) (*model.Execution, error)
	List(ctx context.Context, opts ListOptions) ([]model.Execution, error)
}
