package postgres

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

type fakeRow struct {
	values []any
}

func (r fakeRow) Scan(dest ...any) error {
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case **string:
			*p, _ = r.values[i].(*string)
		case *[]byte:
			*p, _ = r.values[i].([]byte)
		}
	}
	return nil
}

func TestRowRoundTrip(t *testing.T) {
	exec := execution.New(types.NewID(), json.RawMessage(`[2,3]`))
	require.NoError(t, exec.Assign(types.NewID()))
	require.NoError(t, exec.Start())
	require.NoError(t, exec.Complete(execution.NewResult(*exec.Worker, types.Failure(134), nil, exec.Request.CreateTime)))

	row, err := toRow(exec)
	require.NoError(t, err)
	assert.Equal(t, "completed", row.status)
	assert.Nil(t, row.diagnostic)

	got, err := scanExecution(fakeRow{values: []any{row.id, row.status, row.worker, row.request, row.result, row.diagnostic}})
	require.NoError(t, err)
	assert.Equal(t, exec.ID, got.ID)
	assert.Equal(t, exec.Status, got.Status)
	assert.Equal(t, *exec.Worker, *got.Worker)
	assert.Equal(t, exec.Request.TargetFunction, got.Request.TargetFunction)
	assert.JSONEq(t, `[2,3]`, string(got.Request.Input))
	require.NotNil(t, got.Result)
	assert.Equal(t, types.Failure(134), got.Result.Exit)
	assert.Nil(t, got.Diagnostic)
}

func TestRowKeepsDiagnostic(t *testing.T) {
	exec := execution.New(types.NewID(), nil)
	require.NoError(t, exec.Abandon(execution.Diagnostic{Reason: execution.ReasonServiceUnavailable}, nil))

	row, err := toRow(exec)
	require.NoError(t, err)
	assert.Nil(t, row.worker)
	assert.Nil(t, row.result)

	got, err := scanExecution(fakeRow{values: []any{row.id, row.status, row.worker, row.request, row.result, row.diagnostic}})
	require.NoError(t, err)
	assert.Nil(t, got.Worker)
	assert.Nil(t, got.Result)
	require.NotNil(t, got.Diagnostic)
	assert.Equal(t, execution.ReasonServiceUnavailable, got.Diagnostic.Reason)
}
