package worker

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_registry.go -package=mocks . Registry

import (
	"context"
	"time"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// Registry owns the set of known workers and their liveness.
type Registry interface {
	Register(ctx context.Context, address string) (Worker, error)
	List(ctx context.Context, status *Status) ([]Worker, error)
	Get(ctx context.Context, id types.ID) (Worker, error)
	Update(ctx context.Context, w Worker) (Worker, error)
	Heartbeat(ctx context.Context, id types.ID) (Worker, error)
	Remove(ctx context.Context, id types.ID) (Worker, error)
	SweepStale(ctx context.Context, now types.TimeStamp, threshold time.Duration) ([]types.ID, error)
	Transition(ctx context.Context, id types.ID, from, to Status) (Worker, error)
}
