package registry

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

type fakeClock struct {
	mu  sync.Mutex
	now types.TimeStamp
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: types.At(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))}
}

func (c *fakeClock) Now() types.TimeStamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := newFakeClock()
	return New(zerolog.Nop(), WithClock(clock.Now)), clock
}

func status(s worker.Status) *worker.Status { return &s }

func TestRegisterAndGet(t *testing.T) {
	r, clock := newTestRegistry()
	ctx := context.Background()

	w, err := r.Register(ctx, "127.0.0.1:3001")
	require.NoError(t, err)
	assert.Equal(t, worker.StatusAvailable, w.Status)
	assert.Equal(t, clock.Now(), w.CreateTime)
	assert.Equal(t, clock.Now(), w.LastHeartbeat)

	got, err := r.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	again, err := r.Register(ctx, "127.0.0.1:3001")
	require.NoError(t, err)
	assert.NotEqual(t, w.ID, again.ID, "addresses are not unique keys")
}

func TestUnknownIDsAreNotFound(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	id := types.NewID()

	_, err := r.Get(ctx, id)
	assert.ErrorIs(t, err, worker.ErrNotFound)
	_, err = r.Heartbeat(ctx, id)
	assert.ErrorIs(t, err, worker.ErrNotFound)
	_, err = r.Remove(ctx, id)
	assert.ErrorIs(t, err, worker.ErrNotFound)
	_, err = r.Update(ctx, worker.Worker{ID: id})
	assert.ErrorIs(t, err, worker.ErrNotFound)
	_, err = r.Transition(ctx, id, worker.StatusAvailable, worker.StatusOccupied)
	assert.ErrorIs(t, err, worker.ErrNotFound)
}

func TestListIsOrderedAndFiltered(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()

	var ids []types.ID
	for i := 0; i < 8; i++ {
		w, err := r.Register(ctx, "w")
		require.NoError(t, err)
		ids = append(ids, w.ID)
	}
	_, err := r.Remove(ctx, ids[3])
	require.NoError(t, err)

	all, err := r.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, all, 8)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].ID.Less(all[i].ID))
	}

	available, err := r.List(ctx, status(worker.StatusAvailable))
	require.NoError(t, err)
	assert.Len(t, available, 7)

	disabled, err := r.List(ctx, status(worker.StatusDisabled))
	require.NoError(t, err)
	require.Len(t, disabled, 1)
	assert.Equal(t, ids[3], disabled[0].ID)
}

func TestHeartbeatKeepsStatus(t *testing.T) {
	r, clock := newTestRegistry()
	ctx := context.Background()
	w, _ := r.Register(ctx, "w")
	_, err := r.Transition(ctx, w.ID, worker.StatusAvailable, worker.StatusOccupied)
	require.NoError(t, err)

	clock.Advance(3 * time.Second)
	touched, err := r.Heartbeat(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusOccupied, touched.Status)
	assert.Equal(t, clock.Now(), touched.LastHeartbeat)
}

func TestUpdateReplacesWholeRecord(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	w, _ := r.Register(ctx, "old:1")
	_, _ = r.SweepStale(ctx, w.LastHeartbeat.Add(time.Hour), time.Second)

	w.Address = "new:2"
	w.Status = worker.StatusAvailable
	updated, err := r.Update(ctx, w)
	require.NoError(t, err)
	assert.Equal(t, w, updated)

	got, _ := r.Get(ctx, w.ID)
	assert.Equal(t, "new:2", got.Address)
	assert.Equal(t, worker.StatusAvailable, got.Status)
}

func TestRemoveIsSoftDelete(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	w, _ := r.Register(ctx, "w")

	removed, err := r.Remove(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusDisabled, removed.Status)

	got, err := r.Get(ctx, w.ID)
	require.NoError(t, err, "record must be retained for execution history")
	assert.Equal(t, worker.StatusDisabled, got.Status)
}

func TestTransitionIsCompareAndSet(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	w, _ := r.Register(ctx, "w")

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Transition(ctx, w.ID, worker.StatusAvailable, worker.StatusOccupied); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, worker.ErrStatusConflict)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, winners)
}

func TestSweepStale(t *testing.T) {
	r, clock := newTestRegistry()
	ctx := context.Background()
	threshold := 15 * time.Second

	stale, _ := r.Register(ctx, "stale")
	disabled, _ := r.Register(ctx, "disabled")
	_, _ = r.Remove(ctx, disabled.ID)

	clock.Advance(10 * time.Second)
	fresh, _ := r.Register(ctx, "fresh")

	clock.Advance(10 * time.Second)
	ids, err := r.SweepStale(ctx, clock.Now(), threshold)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{stale.ID}, ids)

	got, _ := r.Get(ctx, stale.ID)
	assert.Equal(t, worker.StatusUnknown, got.Status)
	got, _ = r.Get(ctx, disabled.ID)
	assert.Equal(t, worker.StatusDisabled, got.Status)
	got, _ = r.Get(ctx, fresh.ID)
	assert.Equal(t, worker.StatusAvailable, got.Status)

	ids, _ = r.SweepStale(ctx, clock.Now(), threshold)
	assert.Empty(t, ids, "already unknown workers are not reported again")

	_, _ = r.Heartbeat(ctx, stale.ID)
	got, _ = r.Get(ctx, stale.ID)
	assert.Equal(t, worker.StatusUnknown, got.Status, "heartbeat alone never revives a worker")
}

// Random register/heartbeat/sweep sequences: a swept worker is reported once
// and stays unknown until an explicit update.
func TestSweepStaleRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ctx := context.Background()
	threshold := 10 * time.Second

	for round := 0; round < 50; round++ {
		r, clock := newTestRegistry()
		var ids []types.ID
		reported := map[types.ID]int{}

		for step := 0; step < 100; step++ {
			switch rng.Intn(4) {
			case 0:
				w, _ := r.Register(ctx, "w")
				ids = append(ids, w.ID)
			case 1:
				if len(ids) > 0 {
					_, _ = r.Heartbeat(ctx, ids[rng.Intn(len(ids))])
				}
			case 2:
				clock.Advance(time.Duration(rng.Intn(8)) * time.Second)
			case 3:
				before, _ := r.List(ctx, nil)
				swept, err := r.SweepStale(ctx, clock.Now(), threshold)
				require.NoError(t, err)

				seen := map[types.ID]bool{}
				for _, id := range swept {
					require.False(t, seen[id], "reported twice in one sweep")
					seen[id] = true
					reported[id]++
				}
				for _, w := range before {
					shouldSweep := w.Status == worker.StatusAvailable && w.Stale(clock.Now(), threshold)
					assert.Equal(t, shouldSweep, seen[w.ID])
				}
			}
		}

		for id, n := range reported {
			assert.Equal(t, 1, n)
			w, _ := r.Get(ctx, id)
			assert.Equal(t, worker.StatusUnknown, w.Status)
		}
	}
}

func TestTableSnapshotRoundTrip(t *testing.T) {
	r, _ := newTestRegistry()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = r.Register(ctx, "w")
	}
	data, err := r.table.Marshal()
	require.NoError(t, err)

	restored := NewTable()
	require.NoError(t, restored.Unmarshal(data))
	assert.Equal(t, r.table.List(nil), restored.List(nil))
}

func TestSweeperOnlyWhenActive(t *testing.T) {
	r, clock := newTestRegistry()
	ctx := context.Background()
	w, _ := r.Register(ctx, "w")
	clock.Advance(time.Minute)

	active := false
	s := NewSweeper(r, time.Second, 10*time.Second, zerolog.Nop()).OnlyWhen(func() bool { return active })
	s.now = clock.Now

	ids, err := s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	active = true
	ids, err = s.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.ID{w.ID}, ids)
}
