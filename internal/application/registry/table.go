package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Table is the worker table. Every operation takes its inputs explicitly
// (ids, timestamps), so replicas applying the same sequence converge.
// All mutations replace whole records under one lock.
type Table struct {
	mu      sync.RWMutex
	workers map[types.ID]worker.Worker
}

func NewTable() *Table {
	return &Table{workers: map[types.ID]worker.Worker{}}
}

func (t *Table) Insert(w worker.Worker) worker.Worker {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.workers[w.ID] = w
	return w
}

// List returns workers sorted by id, optionally filtered by status.
func (t *Table) List(status *worker.Status) []worker.Worker {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]worker.Worker, 0, len(t.workers))
	for _, w := range t.workers {
		if status != nil && w.Status != *status {
			continue
		}
		out = append(out, w)
	}
	sortByID(out)
	return out
}

func (t *Table) Get(id types.ID) (worker.Worker, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	w, ok := t.workers[id]
	if !ok {
		return worker.Worker{}, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
	}
	return w, nil
}

func (t *Table) Update(w worker.Worker) (worker.Worker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.workers[w.ID]; !ok {
		return worker.Worker{}, fmt.Errorf("%w: %s", worker.ErrNotFound, w.ID)
	}
	t.workers[w.ID] = w
	return w, nil
}

func (t *Table) Touch(id types.ID, now types.TimeStamp) (worker.Worker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.workers[id]
	if !ok {
		return worker.Worker{}, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
	}
	w.LastHeartbeat = now
	t.workers[id] = w
	return w, nil
}

// Disable is the soft delete: the record stays so that execution history
// keeps pointing at a known worker.
func (t *Table) Disable(id types.ID) (worker.Worker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.workers[id]
	if !ok {
		return worker.Worker{}, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
	}
	w.Status = worker.StatusDisabled
	t.workers[id] = w
	return w, nil
}

// Transition sets the status to `to` only if it is currently `from`.
func (t *Table) Transition(id types.ID, from, to worker.Status) (worker.Worker, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.workers[id]
	if !ok {
		return worker.Worker{}, fmt.Errorf("%w: %s", worker.ErrNotFound, id)
	}
	if w.Status != from {
		return w, fmt.Errorf("%w: %s is %s, not %s", worker.ErrStatusConflict, id, w.Status, from)
	}
	w.Status = to
	t.workers[id] = w
	return w, nil
}

// SweepStale marks every worker whose heartbeat is older than threshold as
// unknown. Disabled workers and workers already unknown are left alone, so a
// stale worker is reported only by the sweep that transitions it.
func (t *Table) SweepStale(now types.TimeStamp, threshold time.Duration) []types.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var affected []types.ID
	for id, w := range t.workers {
		if w.Status == worker.StatusDisabled || w.Status == worker.StatusUnknown {
			continue
		}
		if !w.Stale(now, threshold) {
			continue
		}
		w.Status = worker.StatusUnknown
		t.workers[id] = w
		affected = append(affected, id)
	}
	sort.Slice(affected, func(i, j int) bool { return affected[i].Less(affected[j]) })
	return affected
}

// Marshal serializes the table for snapshots.
func (t *Table) Marshal() ([]byte, error) {
	return json.Marshal(t.List(nil))
}

// Unmarshal replaces the table content with a snapshot.
func (t *Table) Unmarshal(data []byte) error {
	var workers []worker.Worker
	if err := json.Unmarshal(data, &workers); err != nil {
		return err
	}
	next := make(map[types.ID]worker.Worker, len(workers))
	for _, w := range workers {
		next[w.ID] = w
	}
	t.mu.Lock()
	t.workers = next
	t.mu.Unlock()
	return nil
}

func sortByID(workers []worker.Worker) {
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID.Less(workers[j].ID) })
}
