package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// ControlPlane is the registry API as seen from a worker.
type ControlPlane interface {
	Register(ctx context.Context, address string) (worker.Worker, error)
	Get(ctx context.Context, id types.ID) (worker.Worker, error)
	Update(ctx context.Context, w worker.Worker) (worker.Worker, error)
	Heartbeat(ctx context.Context, id types.ID) (worker.Worker, error)
}

type IdentityStore interface {
	Load() (types.ID, error)
	Save(id types.ID) error
	Clear() error
}

// Agent keeps a worker registered with the control plane.
type Agent struct {
	controlPlane ControlPlane
	identity     IdentityStore
	address      string
	interval     time.Duration
	retry        time.Duration
	logger       zerolog.Logger

	mu   sync.RWMutex
	self worker.Worker
}

func New(cp ControlPlane, identity IdentityStore, address string, interval time.Duration, logger zerolog.Logger) *Agent {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Agent{
		controlPlane: cp,
		identity:     identity,
		address:      address,
		interval:     interval,
		retry:        time.Second,
		logger:       logger.With().Str("service", "agent").Logger(),
	}
}

// Self returns the last record acknowledged by the control plane.
func (a *Agent) Self() worker.Worker {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.self
}

// Announce re-announces a stored identity, or registers a fresh one when
// the identity is missing, corrupt or unknown to the control plane.
func (a *Agent) Announce(ctx context.Context) (worker.Worker, error) {
	id, err := a.identity.Load()
	switch {
	case err == nil:
		w, err := a.reannounce(ctx, id)
		if err == nil {
			a.logger.Info().Str("worker_id", w.ID.String()).Msg("worker re-announced")
			return w, nil
		}
		if !errors.Is(err, worker.ErrNotFound) {
			return worker.Worker{}, err
		}
		a.logger.Warn().Str("worker_id", id.String()).Msg("control plane does not know stored identity, registering fresh")
	case errors.Is(err, ErrNoIdentity):
	default:
		a.logger.Warn().Err(err).Msg("discarding unreadable identity")
	}
	return a.register(ctx)
}

func (a *Agent) reannounce(ctx context.Context, id types.ID) (worker.Worker, error) {
	w, err := a.controlPlane.Get(ctx, id)
	if err != nil {
		return worker.Worker{}, err
	}
	w.Address = a.address
	w.Status = worker.StatusAvailable
	w, err = a.controlPlane.Update(ctx, w)
	if err != nil {
		return worker.Worker{}, err
	}
	a.set(w)
	return w, nil
}

func (a *Agent) register(ctx context.Context) (worker.Worker, error) {
	if err := a.identity.Clear(); err != nil {
		a.logger.Warn().Err(err).Msg("failed to delete identity file")
	}
	w, err := a.controlPlane.Register(ctx, a.address)
	if err != nil {
		return worker.Worker{}, err
	}
	if err := a.identity.Save(w.ID); err != nil {
		a.logger.Warn().Err(err).Msg("failed to persist identity")
	}
	a.set(w)
	a.logger.Info().Str("worker_id", w.ID.String()).Str("address", a.address).Msg("worker registered")
	return w, nil
}

func (a *Agent) set(w worker.Worker) {
	a.mu.Lock()
	a.self = w
	a.mu.Unlock()
}

// Run announces, retrying until it succeeds, then heartbeats every interval
// until ctx is done.
func (a *Agent) Run(ctx context.Context) error {
	for {
		_, err := a.Announce(ctx)
		if err == nil {
			break
		}
		a.logger.Warn().Err(err).Dur("retry", a.retry).Msg("announce failed")
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.retry):
		}
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			a.Beat(ctx)
		}
	}
}

// Beat sends one heartbeat. A worker the control plane no longer knows
// registers again; one the sweeper marked unknown is re-announced.
func (a *Agent) Beat(ctx context.Context) {
	id := a.Self().ID
	w, err := a.controlPlane.Heartbeat(ctx, id)
	switch {
	case err == nil && w.Status == worker.StatusUnknown:
		a.logger.Warn().Str("worker_id", id.String()).Msg("marked unknown by sweep, re-announcing")
		if _, err := a.reannounce(ctx, id); err != nil {
			a.set(w)
			a.logger.Error().Err(err).Msg("re-announce failed")
		}
	case err == nil:
		a.set(w)
	case errors.Is(err, worker.ErrNotFound):
		a.logger.Warn().Str("worker_id", id.String()).Msg("heartbeat rejected, re-registering")
		if _, err := a.register(ctx); err != nil {
			a.logger.Error().Err(err).Msg("re-registration failed")
		}
	default:
		if ctx.Err() == nil {
			a.logger.Warn().Err(err).Msg("heartbeat failed")
		}
	}
}
