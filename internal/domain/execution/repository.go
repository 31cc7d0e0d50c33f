package execution

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_repository.go -package=mocks . Repository

import (
	"context"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// Repository defines execution persistence.
type Repository interface {
	Create(ctx context.Context, exec *Execution) error
	Update(ctx context.Context, exec *Execution) error
	GetByID(ctx context.Context, id types.ID) (*Execution, error)
	List(ctx context.Context, limit, offset int) ([]*Execution, error)
}
