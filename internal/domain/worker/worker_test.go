package worker

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

func TestNewWorkerIsAvailable(t *testing.T) {
	now := types.Now()
	w := New("127.0.0.1:3001", now)

	assert.False(t, w.ID.IsNil())
	assert.Equal(t, StatusAvailable, w.Status)
	assert.Equal(t, now, w.CreateTime)
	assert.Equal(t, now, w.LastHeartbeat)
	assert.True(t, w.Dispatchable())
}

func TestWorkerStale(t *testing.T) {
	now := types.Now()
	w := New("a", now)

	assert.False(t, w.Stale(now.Add(5*time.Second), 10*time.Second))
	assert.False(t, w.Stale(now.Add(10*time.Second), 10*time.Second))
	assert.True(t, w.Stale(now.Add(11*time.Second), 10*time.Second))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseStatus("occupied")
	require.NoError(t, err)
	assert.Equal(t, StatusOccupied, st)

	_, err = ParseStatus("busy")
	assert.Error(t, err)
}

func TestWorkerJSONRoundTrip(t *testing.T) {
	w := New("10.0.0.4:3001", types.Now())
	data, err := json.Marshal(w)
	require.NoError(t, err)

	var decoded Worker
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, w, decoded)
}
