package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
	"golang.org/x/sync/errgroup"

	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

var (
	ErrUnknownFunction = errors.New("unknown function")
	ErrBadParams       = errors.New("bad params")
)

const (
	// ExitBadEntryPoint is reported when the entrypoint is missing or its
	// signature does not match the declared runtime.
	ExitBadEntryPoint uint32 = 127
	// ExitSandboxFault is reported when the module traps.
	ExitSandboxFault uint32 = 134
)

const DefaultTimeout = 10 * time.Second

type Options struct {
	Timeout          time.Duration
	MemoryLimitPages uint32
	// CacheDir enables wazero's on-disk compilation cache when set.
	CacheDir string
}

// Outcome is the result of one call. Error explains non-success exits.
type Outcome struct {
	Exit   types.ExitKind
	Output json.RawMessage
	Stdout string
	Stderr string
	Error  string
}

// Source fetches module bytecode by blob address.
type Source interface {
	Fetch(ctx context.Context, address string) ([]byte, error)
}

type call struct {
	results []uint64
	err     error
}

type module struct {
	fn       function.Function
	compiled wazero.CompiledModule
}

// Executor runs WASM functions. The runtime and compiled modules are shared;
// every call gets its own module instance.
type Executor struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	timeout time.Duration
	mu      sync.RWMutex
	modules map[string]*module
	logger  zerolog.Logger
}

func New(ctx context.Context, opts Options, logger zerolog.Logger) (*Executor, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	config := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if opts.MemoryLimitPages > 0 {
		config = config.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	var cache wazero.CompilationCache
	if opts.CacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(opts.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("create compilation cache: %w", err)
		}
		config = config.WithCompilationCache(cache)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, config)
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		rt.Close(ctx)
		return nil, fmt.Errorf("instantiate wasi: %w", err)
	}
	return &Executor{
		runtime: rt,
		cache:   cache,
		timeout: opts.Timeout,
		modules: map[string]*module{},
		logger:  logger.With().Str("service", "sandbox").Logger(),
	}, nil
}

// Load compiles the module for fn. Loading the same name again replaces it.
func (e *Executor) Load(ctx context.Context, fn function.Function, code []byte) error {
	if err := fn.Runtime.Validate(); err != nil {
		return fmt.Errorf("%s: %w", fn.Name, err)
	}
	if err := fn.VerifyCode(code); err != nil {
		return err
	}
	compiled, err := e.runtime.CompileModule(ctx, code)
	if err != nil {
		return fmt.Errorf("compile %s: %w", fn.Name, err)
	}

	e.mu.Lock()
	e.modules[fn.Name] = &module{fn: fn, compiled: compiled}
	e.mu.Unlock()
	e.logger.Info().Str("function", fn.Name).Str("entrypoint", fn.Runtime.Entrypoint).Msg("module loaded")
	return nil
}

// LoadAll fetches and compiles every function in parallel. The first
// failure aborts the rest.
func (e *Executor) LoadAll(ctx context.Context, fns []function.Function, src Source) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, fn := range fns {
		fn := fn
		g.Go(func() error {
			code, err := src.Fetch(ctx, fn.BlobAddress)
			if err != nil {
				return fmt.Errorf("fetch %s from %s: %w", fn.Name, fn.BlobAddress, err)
			}
			return e.Load(ctx, fn, code)
		})
	}
	return g.Wait()
}

// Functions lists loaded functions by name.
func (e *Executor) Functions() []function.Function {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]function.Function, 0, len(e.modules))
	for _, m := range e.modules {
		out = append(out, m.fn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute calls the named function with params, a JSON array. Sandbox
// faults are reported in the Outcome; the error is reserved for unknown
// functions, bad params and caller cancellation.
func (e *Executor) Execute(ctx context.Context, name string, params json.RawMessage) (*Outcome, error) {
	e.mu.RLock()
	m, ok := e.modules[name]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	rt := m.fn.Runtime

	def, ok := m.compiled.ExportedFunctions()[rt.Entrypoint]
	if !ok {
		return &Outcome{
			Exit:  types.Failure(ExitBadEntryPoint),
			Error: fmt.Sprintf("entrypoint %q is not exported", rt.Entrypoint),
		}, nil
	}
	if !matches(def, rt) {
		return &Outcome{
			Exit:  types.Failure(ExitBadEntryPoint),
			Error: fmt.Sprintf("entrypoint %q signature %v -> %v does not match declared %v -> %v", rt.Entrypoint, typeNames(def.ParamTypes()), typeNames(def.ResultTypes()), rt.Params, rt.Results),
		}, nil
	}
	args, err := decodeParams(rt.Params, params)
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	instance, err := e.runtime.InstantiateModule(callCtx, m.compiled, wazero.NewModuleConfig().
		WithName("").
		WithStartFunctions().
		WithArgs(name).
		WithStdout(&stdout).
		WithStderr(&stderr))
	if err != nil {
		return e.fault(ctx, callCtx, err, &stdout, &stderr)
	}
	defer instance.Close(context.Background())

	done := make(chan call, 1)
	go func() {
		results, err := instance.ExportedFunction(rt.Entrypoint).Call(callCtx, args...)
		done <- call{results: results, err: err}
	}()

	var res call
	select {
	case res = <-done:
	case <-callCtx.Done():
		// The instance must unwind before its buffers are read.
		instance.CloseWithExitCode(context.Background(), sys.ExitCodeDeadlineExceeded)
		res = <-done
	}
	if res.err != nil {
		return e.fault(ctx, callCtx, res.err, &stdout, &stderr)
	}

	output, err := encodeResults(rt.Results, res.results)
	if err != nil {
		return &Outcome{
			Exit:   types.Failure(ExitSandboxFault),
			Stdout: stdout.String(),
			Stderr: stderr.String(),
			Error:  err.Error(),
		}, nil
	}
	return &Outcome{
		Exit:   types.Success(),
		Output: output,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}, nil
}

// fault maps an instantiate or call error to an outcome.
func (e *Executor) fault(ctx, callCtx context.Context, err error, stdout, stderr *bytes.Buffer) (*Outcome, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	out := &Outcome{Error: err.Error()}

	var exitErr *sys.ExitError
	switch {
	case callCtx.Err() == context.DeadlineExceeded:
		out.Exit = types.TimeOut()
		out.Error = fmt.Sprintf("execution exceeded %s", e.timeout)
	case errors.As(err, &exitErr):
		switch code := exitErr.ExitCode(); code {
		case 0:
			out.Exit = types.Success()
			out.Error = ""
		case sys.ExitCodeDeadlineExceeded:
			out.Exit = types.TimeOut()
		default:
			out.Exit = types.Failure(code)
		}
	default:
		out.Exit = types.Failure(ExitSandboxFault)
	}
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	if !out.Exit.IsSuccess() {
		e.logger.Debug().Str("exit", out.Exit.String()).Str("error", out.Error).Msg("call did not succeed")
	}
	return out, nil
}

// Close releases compiled modules and the runtime.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.modules = map[string]*module{}
	e.mu.Unlock()
	err := e.runtime.Close(ctx)
	if e.cache != nil {
		if cerr := e.cache.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}
