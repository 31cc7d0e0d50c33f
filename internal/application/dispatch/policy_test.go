package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

func candidates(n int) []worker.Worker {
	now := types.Now()
	out := make([]worker.Worker, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, worker.New("10.0.0.1:8081", now))
	}
	return out
}

func TestNewPolicy(t *testing.T) {
	for _, name := range []string{"", PolicyLowestID, PolicyRoundRobin, PolicyLeastLoaded} {
		p, err := NewPolicy(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, p.Name())
	}
	_, err := NewPolicy("random")
	assert.Error(t, err)
}

func TestPoliciesRejectEmptyCandidates(t *testing.T) {
	for _, p := range []SelectionPolicy{LowestID{}, &RoundRobin{}, NewLeastLoaded()} {
		_, ok := p.Select(function.Function{}, nil)
		assert.False(t, ok, p.Name())
	}
}

func TestRoundRobinRotates(t *testing.T) {
	ws := candidates(3)
	p := &RoundRobin{}
	var got []types.ID
	for i := 0; i < 4; i++ {
		w, ok := p.Select(function.Function{}, ws)
		require.True(t, ok)
		got = append(got, w.ID)
	}
	assert.Equal(t, []types.ID{ws[0].ID, ws[1].ID, ws[2].ID, ws[0].ID}, got)
}

func TestLeastLoadedPrefersIdleWorkers(t *testing.T) {
	ws := candidates(2)
	p := NewLeastLoaded()

	w, ok := p.Select(function.Function{}, ws)
	require.True(t, ok)
	assert.Equal(t, ws[0].ID, w.ID)

	p.Acquired(ws[0].ID)
	w, _ = p.Select(function.Function{}, ws)
	assert.Equal(t, ws[1].ID, w.ID)

	p.Acquired(ws[1].ID)
	p.Acquired(ws[1].ID)
	w, _ = p.Select(function.Function{}, ws)
	assert.Equal(t, ws[0].ID, w.ID)

	p.Released(ws[1].ID)
	p.Released(ws[1].ID)
	assert.Equal(t, 0, p.InFlight(ws[1].ID))
}

func TestExpressionFilter(t *testing.T) {
	now := types.Now()
	near := worker.New("10.0.0.1:8081", now)
	far := worker.New("192.168.1.9:8081", now.Add(-30*time.Second))

	f, err := NewExpressionFilter(`address =~ "^10[.]" && heartbeatAge < 10`)
	require.NoError(t, err)
	f.now = func() types.TimeStamp { return now }

	kept, err := f.Filter(function.Function{Name: "add"}, []worker.Worker{near, far})
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, near.ID, kept[0].ID)

	byFunction, err := NewExpressionFilter(`function == "mul"`)
	require.NoError(t, err)
	kept, err = byFunction.Filter(function.Function{Name: "add"}, []worker.Worker{near, far})
	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestExpressionFilterRequiresBoolean(t *testing.T) {
	f, err := NewExpressionFilter(`heartbeatAge + 1`)
	require.NoError(t, err)
	_, err = f.Filter(function.Function{}, candidates(1))
	assert.Error(t, err)
}

func TestExpressionFilterEmpty(t *testing.T) {
	f, err := NewExpressionFilter("  ")
	require.NoError(t, err)
	assert.Nil(t, f)

	_, err = NewExpressionFilter("address ==")
	assert.Error(t, err)
}
