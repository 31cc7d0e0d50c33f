package httpapi

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/execution-hub/fnhub/internal/application/catalog"
	"github.com/execution-hub/fnhub/internal/application/dispatch"
	"github.com/execution-hub/fnhub/internal/domain/execution"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

const (
	headerExecutionID = "X-Execution-Id"
	maxInvokeBody     = 16 << 20
)

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	root := chi.URLParam(r, "root")
	subPath := chi.URLParam(r, "*")

	input, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxInvokeBody))
	if err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, "INVALID_PARAM", err.Error())
		return
	}

	exec, err := s.dispatcher.Invoke(r.Context(), root, subPath, input)
	if exec != nil {
		w.Header().Set(headerExecutionID, exec.ID.String())
	}
	if err != nil {
		s.respondInvokeError(w, exec, err)
		return
	}
	s.respondResult(w, exec)
}

func (s *Server) respondInvokeError(w http.ResponseWriter, exec *execution.Execution, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, dispatch.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_INPUT", err.Error())
	case errors.Is(err, dispatch.ErrServiceUnavailable):
		respondError(w, http.StatusServiceUnavailable, string(execution.ReasonServiceUnavailable), err.Error())
	case errors.Is(err, dispatch.ErrBadGateway):
		respondError(w, http.StatusBadGateway, string(execution.ReasonBadGateway), err.Error())
	case errors.Is(err, dispatch.ErrGatewayTimeout):
		respondError(w, http.StatusGatewayTimeout, string(execution.ReasonGatewayTimeout), err.Error())
	default:
		ev := s.logger.Error().Err(err)
		if exec != nil {
			ev = ev.Str("execution_id", exec.ID.String())
		}
		ev.Msg("invocation failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// respondResult writes a completed execution. Success returns the raw
// function output; other exits return an error envelope.
func (s *Server) respondResult(w http.ResponseWriter, exec *execution.Execution) {
	if exec.Result == nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "execution completed without result")
		return
	}
	res := exec.Result
	switch res.Exit.Kind {
	case types.ExitSuccess:
		output := res.OutputData
		if len(output) == 0 {
			output = []byte("null")
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(output)
	case types.ExitTimeOut:
		respondJSON(w, http.StatusGatewayTimeout, map[string]interface{}{
			"error":   "FUNCTION_TIMEOUT",
			"message": "function exceeded its execution time limit",
			"exit":    res.Exit,
		})
	default:
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   "FUNCTION_FAILED",
			"message": "function exited with " + res.Exit.String(),
			"exit":    res.Exit,
			"output":  res.OutputData,
		})
	}
}
