package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Mode controls how many executions a worker may hold at once.
type Mode string

const (
	// ModeShared lets any number of executions target the same available worker.
	ModeShared Mode = "shared"
	// ModeExclusive flips the worker to occupied for the duration of the call.
	ModeExclusive Mode = "exclusive"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeShared:
		return ModeShared, nil
	case ModeExclusive:
		return ModeExclusive, nil
	}
	return "", fmt.Errorf("unknown dispatch mode %q", s)
}

// Resolver maps invocation paths to functions.
type Resolver interface {
	Resolve(root, subPath string) (function.Function, error)
}

// Filter narrows the available workers before selection.
type Filter interface {
	Filter(fn function.Function, candidates []worker.Worker) ([]worker.Worker, error)
}

type Options struct {
	Mode    Mode
	Timeout time.Duration
	Filter  Filter
}

// Dispatcher routes invocations to workers and drives each execution
// through its state machine.
type Dispatcher struct {
	resolver Resolver
	registry worker.Registry
	repo     execution.Repository
	client   WorkerClient
	policy   SelectionPolicy
	opts     Options
	logger   zerolog.Logger
}

func New(resolver Resolver, registry worker.Registry, repo execution.Repository, client WorkerClient, policy SelectionPolicy, opts Options, logger zerolog.Logger) *Dispatcher {
	if policy == nil {
		policy = LowestID{}
	}
	if opts.Mode == "" {
		opts.Mode = ModeShared
	}
	return &Dispatcher{
		resolver: resolver,
		registry: registry,
		repo:     repo,
		client:   client,
		policy:   policy,
		opts:     opts,
		logger:   logger.With().Str("service", "dispatch").Logger(),
	}
}

// Invoke runs the function bound to (root, subPath). The returned execution
// is terminal whenever it is non-nil; the error classifies why it did not
// complete. A nil execution means nothing was created.
func (d *Dispatcher) Invoke(ctx context.Context, root, subPath string, input json.RawMessage) (*execution.Execution, error) {
	fn, err := d.resolver.Resolve(root, subPath)
	if err != nil {
		return nil, err
	}
	if err := fn.InputType.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if len(input) == 0 {
		input = nil
	}

	exec := execution.New(fn.ID, input)
	if err := d.repo.Create(ctx, exec); err != nil {
		return nil, fmt.Errorf("create execution: %w", err)
	}
	logger := d.logger.With().
		Str("execution_id", exec.ID.String()).
		Str("function", fn.Name).
		Logger()

	w, release, err := d.acquire(ctx, fn)
	if err != nil {
		logger.Warn().Err(err).Msg("no worker selected")
		return d.abandon(exec, execution.Diagnostic{
			Reason:  execution.ReasonServiceUnavailable,
			Message: err.Error(),
		}, nil, ErrServiceUnavailable)
	}
	defer release()

	if err := exec.Assign(w.ID); err != nil {
		return exec, err
	}
	d.save(exec)
	logger = logger.With().Str("worker_id", w.ID.String()).Logger()
	logger.Debug().Str("address", w.Address).Msg("execution assigned")

	return d.forward(ctx, exec, fn, w, logger)
}

// acquire picks a worker. In exclusive mode the worker is moved to occupied
// and the returned release func moves it back.
func (d *Dispatcher) acquire(ctx context.Context, fn function.Function) (worker.Worker, func(), error) {
	available := worker.StatusAvailable
	listed, err := d.registry.List(ctx, &available)
	if err != nil {
		return worker.Worker{}, nil, err
	}
	candidates := make([]worker.Worker, 0, len(listed))
	for _, w := range listed {
		if w.Dispatchable() {
			candidates = append(candidates, w)
		}
	}
	if d.opts.Filter != nil {
		candidates, err = d.opts.Filter.Filter(fn, candidates)
		if err != nil {
			return worker.Worker{}, nil, err
		}
	}

	for {
		w, ok := d.policy.Select(fn, candidates)
		if !ok {
			return worker.Worker{}, nil, errors.New("no available worker")
		}
		if d.opts.Mode == ModeExclusive {
			if _, err := d.registry.Transition(ctx, w.ID, worker.StatusAvailable, worker.StatusOccupied); err != nil {
				if errors.Is(err, worker.ErrStatusConflict) || errors.Is(err, worker.ErrNotFound) {
					candidates = without(candidates, w.ID)
					continue
				}
				return worker.Worker{}, nil, err
			}
		}
		return w, d.releaser(w), nil
	}
}

func (d *Dispatcher) releaser(w worker.Worker) func() {
	observer, _ := d.policy.(LoadObserver)
	if observer != nil {
		observer.Acquired(w.ID)
	}
	return func() {
		if observer != nil {
			observer.Released(w.ID)
		}
		if d.opts.Mode != ModeExclusive {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// A sweep or an operator may have moved the worker meanwhile; leave it.
		if _, err := d.registry.Transition(ctx, w.ID, worker.StatusOccupied, worker.StatusAvailable); err != nil &&
			!errors.Is(err, worker.ErrStatusConflict) && !errors.Is(err, worker.ErrNotFound) {
			d.logger.Warn().Err(err).Str("worker_id", w.ID.String()).Msg("failed to release worker")
		}
	}
}

func (d *Dispatcher) forward(ctx context.Context, exec *execution.Execution, fn function.Function, w worker.Worker, logger zerolog.Logger) (*execution.Execution, error) {
	var mu sync.Mutex
	started := types.Now()
	start := func() {
		mu.Lock()
		defer mu.Unlock()
		if exec.Status != execution.StatusAssigned {
			return
		}
		if err := exec.Start(); err == nil {
			started = types.Now()
			d.save(exec)
		}
	}

	callCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	res, err := d.client.Execute(callCtx, Call{
		Worker:     w,
		Function:   fn.Name,
		Input:      exec.Request.Input,
		OnAccepted: start,
	})

	mu.Lock()
	defer mu.Unlock()

	if err != nil {
		var statusErr *StatusError
		switch {
		case errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
			logger.Warn().Dur("timeout", d.opts.Timeout).Msg("worker did not answer in time")
			return d.abandon(exec, execution.Diagnostic{
				Reason:  execution.ReasonGatewayTimeout,
				Message: err.Error(),
			}, execution.NewResult(w.ID, types.TimeOut(), nil, started), ErrGatewayTimeout)
		case errors.As(err, &statusErr):
			logger.Warn().Int("status", statusErr.StatusCode).Msg("worker rejected call")
			return d.abandon(exec, execution.Diagnostic{
				Reason:           execution.ReasonBadGateway,
				WorkerStatusCode: statusErr.StatusCode,
				Message:          statusErr.Body,
			}, nil, ErrBadGateway)
		default:
			logger.Warn().Err(err).Msg("worker call failed")
			return d.abandon(exec, execution.Diagnostic{
				Reason:  execution.ReasonBadGateway,
				Message: err.Error(),
			}, nil, ErrBadGateway)
		}
	}

	// A response implies the worker accepted the call.
	if exec.Status == execution.StatusAssigned {
		if err := exec.Start(); err != nil {
			return exec, err
		}
	}
	if err := exec.Complete(execution.NewResult(w.ID, res.Exit, res.Output, started)); err != nil {
		return exec, err
	}
	d.save(exec)
	logger.Info().Str("exit", res.Exit.String()).Msg("execution completed")
	return exec, nil
}

func (d *Dispatcher) abandon(exec *execution.Execution, diag execution.Diagnostic, result *execution.Result, cause error) (*execution.Execution, error) {
	if err := exec.Abandon(diag, result); err != nil {
		return exec, err
	}
	d.save(exec)
	return exec, cause
}

// save persists a transition. Storage failures do not change the outcome
// returned to the caller.
func (d *Dispatcher) save(exec *execution.Execution) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.repo.Update(ctx, exec); err != nil {
		d.logger.Error().Err(err).Str("execution_id", exec.ID.String()).Msg("failed to persist execution")
	}
}

// GetExecution returns a stored execution.
func (d *Dispatcher) GetExecution(ctx context.Context, id types.ID) (*execution.Execution, error) {
	exec, err := d.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if exec == nil {
		return nil, execution.ErrNotFound
	}
	return exec, nil
}

// ListExecutions returns stored executions, newest first.
func (d *Dispatcher) ListExecutions(ctx context.Context, limit, offset int) ([]*execution.Execution, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return d.repo.List(ctx, limit, offset)
}

func without(workers []worker.Worker, id types.ID) []worker.Worker {
	out := make([]worker.Worker, 0, len(workers))
	for _, w := range workers {
		if w.ID != id {
			out = append(out, w)
		}
	}
	return out
}
