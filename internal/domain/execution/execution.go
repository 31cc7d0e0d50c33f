package execution

import (
	"encoding/json"
	"errors"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// Status represents execution status.
type Status string

const (
	StatusCreated   Status = "created"
	StatusAssigned  Status = "assigned"
	StatusStarted   Status = "started"
	StatusCompleted Status = "completed"
	StatusUnknown   Status = "unknown"
)

var (
	ErrInvalidTransition = errors.New("invalid execution status transition")
	ErrResultAttached    = errors.New("execution result already attached")
	ErrNotFound          = errors.New("execution not found")
)

// Reason explains why an execution ended in StatusUnknown.
type Reason string

const (
	ReasonServiceUnavailable Reason = "SERVICE_UNAVAILABLE"
	ReasonBadGateway         Reason = "BAD_GATEWAY"
	ReasonGatewayTimeout     Reason = "GATEWAY_TIMEOUT"
)

// Diagnostic preserves what went wrong when no result could be obtained.
type Diagnostic struct {
	Reason           Reason `json:"reason"`
	WorkerStatusCode int    `json:"workerStatusCode,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Request is immutable once created.
type Request struct {
	ID             types.ID        `json:"id"`
	CreateTime     types.TimeStamp `json:"createTime"`
	Input          json.RawMessage `json:"input,omitempty"`
	TargetFunction types.ID        `json:"targetFunction"`
}

// Result is created exactly once, when the worker call returns or definitively fails.
type Result struct {
	ID           types.ID        `json:"id"`
	CreateTime   types.TimeStamp `json:"createTime"`
	OutputData   json.RawMessage `json:"outputData,omitempty"`
	Exit         types.ExitKind  `json:"exit"`
	Worker       types.ID        `json:"worker"`
	CompleteTime types.TimeStamp `json:"completeTime"`
}

// NewResult builds a result stamped with the current time.
func NewResult(workerID types.ID, exit types.ExitKind, output json.RawMessage, started types.TimeStamp) *Result {
	return &Result{
		ID:           types.NewID(),
		CreateTime:   started,
		OutputData:   output,
		Exit:         exit,
		Worker:       workerID,
		CompleteTime: types.Now(),
	}
}

// Execution is one attempt to run a function for one request.
type Execution struct {
	ID         types.ID    `json:"id"`
	Request    Request     `json:"request"`
	Result     *Result     `json:"result,omitempty"`
	Status     Status      `json:"status"`
	Worker     *types.ID   `json:"worker,omitempty"`
	Diagnostic *Diagnostic `json:"diagnostic,omitempty"`
}

// New creates an execution in StatusCreated.
func New(target types.ID, input json.RawMessage) *Execution {
	now := types.Now()
	return &Execution{
		ID: types.NewID(),
		Request: Request{
			ID:             types.NewID(),
			CreateTime:     now,
			Input:          input,
			TargetFunction: target,
		},
		Status: StatusCreated,
	}
}

// Terminal reports whether no further transition is possible.
func (e *Execution) Terminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusUnknown
}

// CanTransitionTo validates execution status transition.
func (e *Execution) CanTransitionTo(target Status) bool {
	transitions := map[Status][]Status{
		StatusCreated:   {StatusAssigned, StatusUnknown},
		StatusAssigned:  {StatusStarted, StatusUnknown},
		StatusStarted:   {StatusCompleted, StatusUnknown},
		StatusCompleted: {},
		StatusUnknown:   {},
	}
	allowed := transitions[e.Status]
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// Assign binds the execution to a worker.
func (e *Execution) Assign(workerID types.ID) error {
	if !e.CanTransitionTo(StatusAssigned) {
		return ErrInvalidTransition
	}
	id := workerID
	e.Worker = &id
	e.Status = StatusAssigned
	return nil
}

// Start records that the worker accepted the call.
func (e *Execution) Start() error {
	if !e.CanTransitionTo(StatusStarted) {
		return ErrInvalidTransition
	}
	e.Status = StatusStarted
	return nil
}

// Complete attaches the result. Completion means no further state change,
// whatever the exit kind.
func (e *Execution) Complete(result *Result) error {
	if e.Result != nil {
		return ErrResultAttached
	}
	if !e.CanTransitionTo(StatusCompleted) {
		return ErrInvalidTransition
	}
	e.Result = result
	e.Status = StatusCompleted
	return nil
}

// Abandon moves the execution to StatusUnknown. A diagnostic result may be
// attached, e.g. a TimeOut exit when the worker never answered.
func (e *Execution) Abandon(diag Diagnostic, result *Result) error {
	if !e.CanTransitionTo(StatusUnknown) {
		return ErrInvalidTransition
	}
	if result != nil {
		if e.Result != nil {
			return ErrResultAttached
		}
		e.Result = result
	}
	e.Diagnostic = &diag
	e.Status = StatusUnknown
	return nil
}
