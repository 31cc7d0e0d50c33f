package registry

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Sweeper periodically marks workers with stale heartbeats as unknown.
type Sweeper struct {
	registry  worker.Registry
	interval  time.Duration
	threshold time.Duration
	active    func() bool
	now       func() types.TimeStamp
	logger    zerolog.Logger
}

func NewSweeper(registry worker.Registry, interval, threshold time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		registry:  registry,
		interval:  interval,
		threshold: threshold,
		active:    func() bool { return true },
		now:       types.Now,
		logger:    logger.With().Str("service", "sweeper").Logger(),
	}
}

// OnlyWhen restricts sweeping to moments where active returns true,
// e.g. while this node holds Raft leadership.
func (s *Sweeper) OnlyWhen(active func() bool) *Sweeper {
	s.active = active
	return s
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep.
func (s *Sweeper) SweepOnce(ctx context.Context) ([]types.ID, error) {
	if !s.active() {
		return nil, nil
	}
	ids, err := s.registry.SweepStale(ctx, s.now(), s.threshold)
	if err != nil {
		s.logger.Warn().Err(err).Msg("sweep failed")
		return nil, err
	}
	for _, id := range ids {
		s.logger.Warn().Str("worker_id", id.String()).Dur("threshold", s.threshold).Msg("worker heartbeat stale, marked unknown")
	}
	return ids, nil
}
