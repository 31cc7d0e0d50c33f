//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

func TestExecutionRepositoryPostgres(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()
	require.NoError(t, RunMigrations(ctx, pool, MigrationSource("")))
	require.NoError(t, RunMigrations(ctx, pool, MigrationSource("")))

	repo := NewExecutionRepository(pool)
	exec := execution.New(types.NewID(), json.RawMessage(`[1,2]`))
	require.NoError(t, repo.Create(ctx, exec))

	workerID := types.NewID()
	require.NoError(t, exec.Assign(workerID))
	require.NoError(t, exec.Start())
	require.NoError(t, exec.Complete(execution.NewResult(workerID, types.Success(), json.RawMessage(`3`), types.Now())))
	require.NoError(t, repo.Update(ctx, exec))

	got, err := repo.GetByID(ctx, exec.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, execution.StatusCompleted, got.Status)
	assert.Equal(t, workerID, *got.Worker)
	assert.JSONEq(t, `3`, string(got.Result.OutputData))

	missing, err := repo.GetByID(ctx, types.NewID())
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.ErrorIs(t, repo.Update(ctx, execution.New(types.NewID(), nil)), execution.ErrNotFound)
}
