package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Registry is the in-process worker.Registry backed by a single Table.
type Registry struct {
	table  *Table
	now    func() types.TimeStamp
	logger zerolog.Logger
}

var _ worker.Registry = (*Registry)(nil)

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source.
func WithClock(now func() types.TimeStamp) Option {
	return func(r *Registry) { r.now = now }
}

func New(logger zerolog.Logger, opts ...Option) *Registry {
	r := &Registry{
		table:  NewTable(),
		now:    types.Now,
		logger: logger.With().Str("service", "registry").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Registry) Register(_ context.Context, address string) (worker.Worker, error) {
	w := r.table.Insert(worker.New(address, r.now()))
	r.logger.Info().Str("worker_id", w.ID.String()).Str("address", address).Msg("worker registered")
	return w, nil
}

func (r *Registry) List(_ context.Context, status *worker.Status) ([]worker.Worker, error) {
	return r.table.List(status), nil
}

func (r *Registry) Get(_ context.Context, id types.ID) (worker.Worker, error) {
	return r.table.Get(id)
}

func (r *Registry) Update(_ context.Context, w worker.Worker) (worker.Worker, error) {
	return r.table.Update(w)
}

func (r *Registry) Heartbeat(_ context.Context, id types.ID) (worker.Worker, error) {
	return r.table.Touch(id, r.now())
}

func (r *Registry) Remove(_ context.Context, id types.ID) (worker.Worker, error) {
	w, err := r.table.Disable(id)
	if err == nil {
		r.logger.Info().Str("worker_id", id.String()).Msg("worker disabled")
	}
	return w, err
}

func (r *Registry) SweepStale(_ context.Context, now types.TimeStamp, threshold time.Duration) ([]types.ID, error) {
	return r.table.SweepStale(now, threshold), nil
}

func (r *Registry) Transition(_ context.Context, id types.ID, from, to worker.Status) (worker.Worker, error) {
	return r.table.Transition(id, from, to)
}
