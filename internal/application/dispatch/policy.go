package dispatch

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// SelectionPolicy picks one worker among available candidates, which are
// sorted by id. It returns false when none fits.
type SelectionPolicy interface {
	Name() string
	Select(fn function.Function, candidates []worker.Worker) (worker.Worker, bool)
}

// LoadObserver is implemented by policies that track in-flight calls.
type LoadObserver interface {
	Acquired(id types.ID)
	Released(id types.ID)
}

const (
	PolicyLowestID    = "lowest-id"
	PolicyRoundRobin  = "round-robin"
	PolicyLeastLoaded = "least-loaded"
)

// NewPolicy builds a policy by name.
func NewPolicy(name string) (SelectionPolicy, error) {
	switch name {
	case "", PolicyLowestID:
		return LowestID{}, nil
	case PolicyRoundRobin:
		return &RoundRobin{}, nil
	case PolicyLeastLoaded:
		return NewLeastLoaded(), nil
	}
	return nil, fmt.Errorf("unknown selection policy %q", name)
}

// LowestID always picks the first candidate in registry order.
type LowestID struct{}

func (LowestID) Name() string { return PolicyLowestID }

func (LowestID) Select(_ function.Function, candidates []worker.Worker) (worker.Worker, bool) {
	if len(candidates) == 0 {
		return worker.Worker{}, false
	}
	return candidates[0], true
}

// RoundRobin rotates over the candidates.
type RoundRobin struct {
	next atomic.Uint64
}

func (*RoundRobin) Name() string { return PolicyRoundRobin }

func (r *RoundRobin) Select(_ function.Function, candidates []worker.Worker) (worker.Worker, bool) {
	if len(candidates) == 0 {
		return worker.Worker{}, false
	}
	n := r.next.Add(1) - 1
	return candidates[n%uint64(len(candidates))], true
}

// LeastLoaded picks the candidate with the fewest in-flight calls,
// breaking ties by lowest id.
type LeastLoaded struct {
	mu       sync.Mutex
	inflight map[types.ID]int
}

func NewLeastLoaded() *LeastLoaded {
	return &LeastLoaded{inflight: map[types.ID]int{}}
}

func (*LeastLoaded) Name() string { return PolicyLeastLoaded }

func (l *LeastLoaded) Select(_ function.Function, candidates []worker.Worker) (worker.Worker, bool) {
	if len(candidates) == 0 {
		return worker.Worker{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	best := candidates[0]
	for _, w := range candidates[1:] {
		if l.inflight[w.ID] < l.inflight[best.ID] {
			best = w
		}
	}
	return best, true
}

func (l *LeastLoaded) Acquired(id types.ID) {
	l.mu.Lock()
	l.inflight[id]++
	l.mu.Unlock()
}

func (l *LeastLoaded) Released(id types.ID) {
	l.mu.Lock()
	if l.inflight[id] <= 1 {
		delete(l.inflight, id)
	} else {
		l.inflight[id]--
	}
	l.mu.Unlock()
}

func (l *LeastLoaded) InFlight(id types.ID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight[id]
}
