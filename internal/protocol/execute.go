package protocol

import (
	"encoding/json"
	"errors"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// ExecuteResponse is the body a worker returns from POST /execute/{function}.
// Output is null for functions without results.
type ExecuteResponse struct {
	Output json.RawMessage `json:"output"`
	Exit   *types.ExitKind `json:"exit"`
	Stdout string          `json:"stdout,omitempty"`
	Stderr string          `json:"stderr,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Validate rejects bodies that do not carry an outcome.
func (r ExecuteResponse) Validate() error {
	if r.Exit == nil {
		return errors.New("exit is required")
	}
	return nil
}

// ErrorResponse is the error envelope used by both HTTP APIs.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
