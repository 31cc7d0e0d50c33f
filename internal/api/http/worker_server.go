package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/application/sandbox"
	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/worker"
	"github.com/execution-hub/fnhub/internal/protocol"
)

// Executor runs loaded functions on a worker.
type Executor interface {
	Execute(ctx context.Context, name string, params json.RawMessage) (*sandbox.Outcome, error)
	Functions() []function.Function
}

// WorkerServer exposes the sandbox over HTTP.
type WorkerServer struct {
	executor Executor
	self     func() worker.Worker
	logger   zerolog.Logger
}

// NewWorkerServer builds the worker API. self reports the registered
// identity for /healthz and may be nil.
func NewWorkerServer(executor Executor, self func() worker.Worker, logger zerolog.Logger) *WorkerServer {
	return &WorkerServer{
		executor: executor,
		self:     self,
		logger:   logger.With().Str("service", "worker-http").Logger(),
	}
}

// Router builds the HTTP router. No request timeout is installed; the
// sandbox bounds every call itself.
func (s *WorkerServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Get("/functions", s.functions)
	r.Post("/execute/{function}", s.execute)
	return r
}

func (s *WorkerServer) healthz(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":        true,
		"functions": len(s.executor.Functions()),
	}
	if s.self != nil {
		if self := s.self(); !self.ID.IsNil() {
			out["workerId"] = self.ID
			out["address"] = self.Address
		}
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *WorkerServer) functions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.executor.Functions())
}

func (s *WorkerServer) execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "function")
	params, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "INVALID_PARAM", err.Error())
		return
	}

	outcome, err := s.executor.Execute(r.Context(), name, params)
	if err != nil {
		switch {
		case errors.Is(err, sandbox.ErrUnknownFunction):
			respondError(w, http.StatusNotFound, "UNKNOWN_FUNCTION", err.Error())
		case errors.Is(err, sandbox.ErrBadParams):
			respondError(w, http.StatusBadRequest, "BAD_PARAMS", err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respondError(w, http.StatusServiceUnavailable, "CANCELED", err.Error())
		default:
			s.logger.Error().Err(err).Str("function", name).Msg("execute failed")
			respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		}
		return
	}

	exit := outcome.Exit
	s.logger.Debug().Str("function", name).Str("exit", exit.String()).Msg("executed")
	respondJSON(w, http.StatusOK, protocol.ExecuteResponse{
		Output: outcome.Output,
		Exit:   &exit,
		Stdout: outcome.Stdout,
		Stderr: outcome.Stderr,
		Error:  outcome.Error,
	})
}
