package consensus

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/hashicorp/raft"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/application/registry"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

func applyTo(t *testing.T, f *fsm, cmd Command) applyResult {
	t.Helper()
	data, err := encodeCommand(cmd)
	require.NoError(t, err)
	res, ok := f.Apply(&raft.Log{Data: data}).(applyResult)
	require.True(t, ok)
	return res
}

func TestFSMMatchesLocalTable(t *testing.T) {
	base := types.Now()
	a := worker.New("10.0.0.1:8081", base)
	b := worker.New("10.0.0.2:8081", base)
	later := base.Add(40 * time.Second)

	commands := []Command{
		{Type: CommandRegister, Worker: &a},
		{Type: CommandRegister, Worker: &b},
		{Type: CommandHeartbeat, ID: a.ID, Now: base.Add(30 * time.Second)},
		{Type: CommandTransition, ID: a.ID, From: worker.StatusAvailable, To: worker.StatusOccupied},
		{Type: CommandSweep, Now: later, Threshold: 20 * time.Second},
		{Type: CommandRemove, ID: a.ID},
	}

	replicas := []*fsm{{table: registry.NewTable()}, {table: registry.NewTable()}}
	var swept [][]types.ID
	for _, f := range replicas {
		for _, cmd := range commands {
			res := applyTo(t, f, cmd)
			require.NoError(t, res.err)
			if cmd.Type == CommandSweep {
				swept = append(swept, res.ids)
			}
		}
	}

	local := registry.NewTable()
	local.Insert(a)
	local.Insert(b)
	_, err := local.Touch(a.ID, base.Add(30*time.Second))
	require.NoError(t, err)
	_, err = local.Transition(a.ID, worker.StatusAvailable, worker.StatusOccupied)
	require.NoError(t, err)
	expectedSweep := local.SweepStale(later, 20*time.Second)
	_, err = local.Disable(a.ID)
	require.NoError(t, err)

	assert.Equal(t, []types.ID{b.ID}, expectedSweep)
	for i, f := range replicas {
		assert.Equal(t, local.List(nil), f.table.List(nil))
		assert.Equal(t, expectedSweep, swept[i])
	}
}

func TestFSMReportsDomainErrors(t *testing.T) {
	f := &fsm{table: registry.NewTable()}

	res := applyTo(t, f, Command{Type: CommandHeartbeat, ID: types.NewID(), Now: types.Now()})
	assert.ErrorIs(t, res.err, worker.ErrNotFound)

	w := worker.New("10.0.0.1:8081", types.Now())
	applyTo(t, f, Command{Type: CommandRegister, Worker: &w})
	res = applyTo(t, f, Command{Type: CommandTransition, ID: w.ID, From: worker.StatusOccupied, To: worker.StatusAvailable})
	assert.ErrorIs(t, res.err, worker.ErrStatusConflict)

	res = applyTo(t, f, Command{Type: "explode"})
	assert.Error(t, res.err)

	bad, ok := f.Apply(&raft.Log{Data: []byte("{")}).(applyResult)
	require.True(t, ok)
	assert.Error(t, bad.err)
}

type memorySink struct {
	bytes.Buffer
	cancelled bool
}

func (s *memorySink) ID() string    { return "test" }
func (s *memorySink) Close() error  { return nil }
func (s *memorySink) Cancel() error { s.cancelled = true; return nil }

func TestSnapshotRestore(t *testing.T) {
	source := &fsm{table: registry.NewTable()}
	for _, addr := range []string{"a:1", "b:1", "c:1"} {
		w := worker.New(addr, types.Now())
		applyTo(t, source, Command{Type: CommandRegister, Worker: &w})
	}

	snap, err := source.Snapshot()
	require.NoError(t, err)
	sink := &memorySink{}
	require.NoError(t, snap.Persist(sink))
	snap.Release()

	target := &fsm{table: registry.NewTable()}
	require.NoError(t, target.Restore(io.NopCloser(bytes.NewReader(sink.Bytes()))))
	assert.Equal(t, source.table.List(nil), target.table.List(nil))
}

func TestNotLeaderError(t *testing.T) {
	err := error(&NotLeaderError{LeaderID: "node-2", LeaderAddr: "10.0.0.2:7000"})
	assert.True(t, errors.Is(err, ErrNotLeader))
	assert.Contains(t, err.Error(), "10.0.0.2:7000")

	var nle *NotLeaderError
	require.True(t, errors.As(err, &nle))
	assert.Equal(t, "node-2", nle.LeaderID)
}

func TestConfigNormalized(t *testing.T) {
	_, err := Config{RaftAddr: "127.0.0.1:0", DataDir: "x"}.normalized()
	assert.Error(t, err)

	cfg, err := Config{NodeID: " n1 ", RaftAddr: "127.0.0.1:0", DataDir: "x"}.normalized()
	require.NoError(t, err)
	assert.Equal(t, "n1", cfg.NodeID)
	assert.Equal(t, 2, cfg.SnapshotRetain)
	assert.Equal(t, 5*time.Second, cfg.ApplyTimeout)
}

func TestSingleNodeRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a raft node")
	}
	node, err := NewNode(Config{
		NodeID:    "node-1",
		RaftAddr:  "127.0.0.1:0",
		DataDir:   t.TempDir(),
		Bootstrap: true,
	}, zerolog.Nop())
	require.NoError(t, err)
	defer node.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_, err = node.WaitForLeader(ctx, 50*time.Millisecond)
	require.NoError(t, err)
	require.Eventually(t, node.IsLeader, 10*time.Second, 50*time.Millisecond)

	reg := NewRegistry(node, zerolog.Nop())
	w, err := reg.Register(ctx, "10.0.0.1:8081")
	require.NoError(t, err)

	got, err := reg.Get(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w, got)

	_, err = reg.Transition(ctx, w.ID, worker.StatusAvailable, worker.StatusOccupied)
	require.NoError(t, err)
	_, err = reg.Transition(ctx, w.ID, worker.StatusAvailable, worker.StatusOccupied)
	assert.ErrorIs(t, err, worker.ErrStatusConflict)

	removed, err := reg.Remove(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, worker.StatusDisabled, removed.Status)

	_, err = reg.Heartbeat(ctx, types.NewID())
	assert.ErrorIs(t, err, worker.ErrNotFound)
}
