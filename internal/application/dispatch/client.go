package dispatch

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_worker_client.go -package=mocks . WorkerClient

import (
	"context"
	"encoding/json"

	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Call is one forwarded invocation. OnAccepted, when set, is called once the
// worker has received the request, before its response arrives.
type Call struct {
	Worker     worker.Worker
	Function   string
	Input      json.RawMessage
	OnAccepted func()
}

// CallResult is the worker's reported outcome.
type CallResult struct {
	Exit   types.ExitKind
	Output json.RawMessage
	Stdout string
	Stderr string
}

// WorkerClient forwards calls to workers. Implementations return
// *StatusError for non-success statuses and wrap ErrMalformedResponse
// when the body cannot be parsed.
type WorkerClient interface {
	Execute(ctx context.Context, call Call) (*CallResult, error)
}
