package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

func TestCreateGetUpdate(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository()

	exec := execution.New(types.NewID(), json.RawMessage(`[1,2]`))
	require.NoError(t, repo.Create(ctx, exec))
	assert.Error(t, repo.Create(ctx, exec))

	workerID := types.NewID()
	require.NoError(t, exec.Assign(workerID))
	stored, err := repo.GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusCreated, stored.Status, "stored copy is isolated from the caller")

	require.NoError(t, repo.Update(ctx, exec))
	stored, err = repo.GetByID(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, execution.StatusAssigned, stored.Status)
	assert.Equal(t, workerID, *stored.Worker)
}

func TestGetMissingReturnsNil(t *testing.T) {
	repo := NewExecutionRepository()
	exec, err := repo.GetByID(context.Background(), types.NewID())
	require.NoError(t, err)
	assert.Nil(t, exec)

	err = repo.Update(context.Background(), execution.New(types.NewID(), nil))
	assert.ErrorIs(t, err, execution.ErrNotFound)
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := NewExecutionRepository()
	var ids []types.ID
	for i := 0; i < 5; i++ {
		exec := execution.New(types.NewID(), nil)
		require.NoError(t, repo.Create(ctx, exec))
		ids = append(ids, exec.ID)
	}

	page, err := repo.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[4], page[0].ID)
	assert.Equal(t, ids[3], page[1].ID)

	page, err = repo.List(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[0], page[1].ID)

	page, err = repo.List(ctx, 10, 9)
	require.NoError(t, err)
	assert.Empty(t, page)
}
