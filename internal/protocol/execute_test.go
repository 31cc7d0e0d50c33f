package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

func TestExecuteResponseDecode(t *testing.T) {
	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal([]byte(`{"output":5,"exit":{"kind":"success"}}`), &resp))
	require.NoError(t, resp.Validate())
	assert.Equal(t, types.Success(), *resp.Exit)
	assert.JSONEq(t, `5`, string(resp.Output))
}

func TestExecuteResponseRequiresExit(t *testing.T) {
	var resp ExecuteResponse
	require.NoError(t, json.Unmarshal([]byte(`{"output":5}`), &resp))
	assert.Error(t, resp.Validate())
}
