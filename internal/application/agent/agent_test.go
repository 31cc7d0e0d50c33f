package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// fakeControlPlane is a minimal in-memory registry.
type fakeControlPlane struct {
	mu       sync.Mutex
	workers  map[types.ID]worker.Worker
	down     bool
	register int
	beats    int
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{workers: map[types.ID]worker.Worker{}}
}

var errDown = errors.New("connection refused")

func (f *fakeControlPlane) Register(_ context.Context, address string) (worker.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return worker.Worker{}, errDown
	}
	f.register++
	w := worker.New(address, types.Now())
	f.workers[w.ID] = w
	return w, nil
}

func (f *fakeControlPlane) Get(_ context.Context, id types.ID) (worker.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return worker.Worker{}, errDown
	}
	w, ok := f.workers[id]
	if !ok {
		return worker.Worker{}, worker.ErrNotFound
	}
	return w, nil
}

func (f *fakeControlPlane) Update(_ context.Context, w worker.Worker) (worker.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.workers[w.ID]; !ok {
		return worker.Worker{}, worker.ErrNotFound
	}
	f.workers[w.ID] = w
	return w, nil
}

func (f *fakeControlPlane) Heartbeat(_ context.Context, id types.ID) (worker.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beats++
	w, ok := f.workers[id]
	if !ok {
		return worker.Worker{}, worker.ErrNotFound
	}
	w.LastHeartbeat = types.Now()
	f.workers[id] = w
	return w, nil
}

func newAgent(t *testing.T, cp ControlPlane) (*Agent, *FileIdentity) {
	t.Helper()
	identity := NewFileIdentity(filepath.Join(t.TempDir(), "state", "worker-id"))
	return New(cp, identity, "10.0.0.7:8081", 0, zerolog.Nop()), identity
}

func TestAnnounceRegistersWithoutIdentity(t *testing.T) {
	cp := newFakeControlPlane()
	a, identity := newAgent(t, cp)

	w, err := a.Announce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7:8081", w.Address)

	stored, err := identity.Load()
	require.NoError(t, err)
	assert.Equal(t, w.ID, stored)
}

func TestAnnounceReusesKnownIdentity(t *testing.T) {
	cp := newFakeControlPlane()
	old, err := cp.Register(context.Background(), "10.0.0.1:8081")
	require.NoError(t, err)
	old.Status = worker.StatusUnknown
	cp.workers[old.ID] = old

	a, identity := newAgent(t, cp)
	require.NoError(t, identity.Save(old.ID))

	w, err := a.Announce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, old.ID, w.ID)
	assert.Equal(t, "10.0.0.7:8081", w.Address)
	assert.Equal(t, worker.StatusAvailable, w.Status)
	assert.Equal(t, 1, cp.register)
}

func TestAnnounceReplacesUnknownIdentity(t *testing.T) {
	cp := newFakeControlPlane()
	a, identity := newAgent(t, cp)
	stale := types.NewID()
	require.NoError(t, identity.Save(stale))

	w, err := a.Announce(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, stale, w.ID)

	stored, err := identity.Load()
	require.NoError(t, err)
	assert.Equal(t, w.ID, stored)
}

func TestAnnounceReplacesCorruptIdentity(t *testing.T) {
	cp := newFakeControlPlane()
	a, identity := newAgent(t, cp)
	require.NoError(t, os.MkdirAll(filepath.Dir(identity.path), 0o755))
	require.NoError(t, os.WriteFile(identity.path, []byte("garbage"), 0o600))

	w, err := a.Announce(context.Background())
	require.NoError(t, err)
	stored, err := identity.Load()
	require.NoError(t, err)
	assert.Equal(t, w.ID, stored)
}

func TestAnnounceKeepsIdentityWhenControlPlaneIsDown(t *testing.T) {
	cp := newFakeControlPlane()
	a, identity := newAgent(t, cp)
	id := types.NewID()
	require.NoError(t, identity.Save(id))
	cp.down = true

	_, err := a.Announce(context.Background())
	assert.ErrorIs(t, err, errDown)

	stored, err := identity.Load()
	require.NoError(t, err)
	assert.Equal(t, id, stored)
}

func TestBeatReRegistersWhenForgotten(t *testing.T) {
	cp := newFakeControlPlane()
	a, _ := newAgent(t, cp)
	first, err := a.Announce(context.Background())
	require.NoError(t, err)

	a.Beat(context.Background())
	assert.Equal(t, first.ID, a.Self().ID)

	delete(cp.workers, first.ID)
	a.Beat(context.Background())
	assert.NotEqual(t, first.ID, a.Self().ID)
	assert.Equal(t, 2, cp.register)
	assert.Equal(t, 2, cp.beats)
}

func TestBeatReAnnouncesAfterSweep(t *testing.T) {
	cp := newFakeControlPlane()
	a, _ := newAgent(t, cp)
	first, err := a.Announce(context.Background())
	require.NoError(t, err)

	swept := cp.workers[first.ID]
	swept.Status = worker.StatusUnknown
	cp.workers[first.ID] = swept

	a.Beat(context.Background())
	assert.Equal(t, worker.StatusAvailable, cp.workers[first.ID].Status)
	assert.Equal(t, first.ID, a.Self().ID)
	assert.Equal(t, worker.StatusAvailable, a.Self().Status)
	assert.Equal(t, 1, cp.register)

	a.Beat(context.Background())
	assert.Equal(t, worker.StatusAvailable, cp.workers[first.ID].Status)
}

func TestFileIdentityMissing(t *testing.T) {
	identity := NewFileIdentity(filepath.Join(t.TempDir(), "none"))
	_, err := identity.Load()
	assert.ErrorIs(t, err, ErrNoIdentity)
	assert.NoError(t, identity.Clear())
}
