package consensus

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Registry is a worker.Registry replicated through Raft. Reads are served
// from the local table; writes must go through the leader.
type Registry struct {
	node   *Node
	now    func() types.TimeStamp
	logger zerolog.Logger
}

var _ worker.Registry = (*Registry)(nil)

func NewRegistry(node *Node, logger zerolog.Logger) *Registry {
	return &Registry{
		node:   node,
		now:    types.Now,
		logger: logger.With().Str("service", "registry").Str("node_id", node.ID()).Logger(),
	}
}

func (r *Registry) Register(ctx context.Context, address string) (worker.Worker, error) {
	w := worker.New(address, r.now())
	res, err := r.node.propose(ctx, Command{Type: CommandRegister, Worker: &w})
	if err != nil {
		return worker.Worker{}, err
	}
	r.logger.Info().Str("worker_id", w.ID.String()).Str("address", address).Msg("worker registered")
	return res.worker, nil
}

func (r *Registry) List(_ context.Context, status *worker.Status) ([]worker.Worker, error) {
	return r.node.Table().List(status), nil
}

func (r *Registry) Get(_ context.Context, id types.ID) (worker.Worker, error) {
	return r.node.Table().Get(id)
}

func (r *Registry) Update(ctx context.Context, w worker.Worker) (worker.Worker, error) {
	res, err := r.node.propose(ctx, Command{Type: CommandUpdate, Worker: &w})
	return res.worker, err
}

func (r *Registry) Heartbeat(ctx context.Context, id types.ID) (worker.Worker, error) {
	res, err := r.node.propose(ctx, Command{Type: CommandHeartbeat, ID: id, Now: r.now()})
	return res.worker, err
}

func (r *Registry) Remove(ctx context.Context, id types.ID) (worker.Worker, error) {
	res, err := r.node.propose(ctx, Command{Type: CommandRemove, ID: id})
	if err != nil {
		return worker.Worker{}, err
	}
	r.logger.Info().Str("worker_id", id.String()).Msg("worker disabled")
	return res.worker, nil
}

func (r *Registry) SweepStale(ctx context.Context, now types.TimeStamp, threshold time.Duration) ([]types.ID, error) {
	res, err := r.node.propose(ctx, Command{Type: CommandSweep, Now: now, Threshold: threshold})
	return res.ids, err
}

func (r *Registry) Transition(ctx context.Context, id types.ID, from, to worker.Status) (worker.Worker, error) {
	res, err := r.node.propose(ctx, Command{Type: CommandTransition, ID: id, From: from, To: to})
	return res.worker, err
}
