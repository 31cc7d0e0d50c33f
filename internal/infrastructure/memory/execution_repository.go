package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

// ExecutionRepository keeps executions in process memory, newest first.
type ExecutionRepository struct {
	mu    sync.RWMutex
	byID  map[types.ID]*execution.Execution
	order []types.ID
}

var _ execution.Repository = (*ExecutionRepository)(nil)

func NewExecutionRepository() *ExecutionRepository {
	return &ExecutionRepository{byID: map[types.ID]*execution.Execution{}}
}

func (r *ExecutionRepository) Create(_ context.Context, exec *execution.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[exec.ID]; ok {
		return fmt.Errorf("execution %s already exists", exec.ID)
	}
	r.byID[exec.ID] = clone(exec)
	r.order = append(r.order, exec.ID)
	return nil
}

func (r *ExecutionRepository) Update(_ context.Context, exec *execution.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[exec.ID]; !ok {
		return execution.ErrNotFound
	}
	r.byID[exec.ID] = clone(exec)
	return nil
}

func (r *ExecutionRepository) GetByID(_ context.Context, id types.ID) (*execution.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exec, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(exec), nil
}

func (r *ExecutionRepository) List(_ context.Context, limit, offset int) ([]*execution.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*execution.Execution
	for i := len(r.order) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, clone(r.byID[r.order[i]]))
	}
	return out, nil
}

func clone(exec *execution.Execution) *execution.Execution {
	c := *exec
	if exec.Result != nil {
		result := *exec.Result
		c.Result = &result
	}
	if exec.Worker != nil {
		id := *exec.Worker
		c.Worker = &id
	}
	if exec.Diagnostic != nil {
		diag := *exec.Diagnostic
		c.Diagnostic = &diag
	}
	return &c
}
