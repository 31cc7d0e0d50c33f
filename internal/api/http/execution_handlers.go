package httpapi

import (
	"errors"
	"net/http"

	"github.com/execution-hub/fnhub/internal/domain/execution"
)

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parseLimitOffset(r, 50, 100)
	items, err := s.dispatcher.ListExecutions(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error().Err(err).Msg("list executions failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"items":  items,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "executionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid executionId")
		return
	}
	exec, err := s.dispatcher.GetExecution(r.Context(), id)
	if err != nil {
		if errors.Is(err, execution.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, exec)
}
