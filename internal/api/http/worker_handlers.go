package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/execution-hub/fnhub/internal/domain/worker"
)

func (s *Server) registerWorker(w http.ResponseWriter, r *http.Request) {
	var address string
	if err := decodeBody(r, &address); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "body must be a JSON string address")
		return
	}
	address = strings.TrimSpace(address)
	if address == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "address is required")
		return
	}
	wk, err := s.registry.Register(r.Context(), address)
	if err != nil {
		s.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, wk)
}

func (s *Server) listWorkers(w http.ResponseWriter, r *http.Request) {
	var filter *worker.Status
	if v := r.URL.Query().Get("status"); v != "" {
		status, err := worker.ParseStatus(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
			return
		}
		filter = &status
	}
	workers, err := s.registry.List(r.Context(), filter)
	if err != nil {
		s.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, workers)
}

func (s *Server) getWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "workerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid workerId")
		return
	}
	wk, err := s.registry.Get(r.Context(), id)
	if err != nil {
		s.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wk)
}

// patchWorker replaces the record, or refreshes the heartbeat when the
// body is empty.
func (s *Server) patchWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "workerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid workerId")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		wk, err := s.registry.Heartbeat(r.Context(), id)
		if err != nil {
			s.respondRegistryError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, wk)
		return
	}

	var wk worker.Worker
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&wk); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if wk.ID.IsNil() {
		wk.ID = id
	}
	if wk.ID != id {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "worker id does not match path")
		return
	}
	if _, err := worker.ParseStatus(string(wk.Status)); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	updated, err := s.registry.Update(r.Context(), wk)
	if err != nil {
		s.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

func (s *Server) removeWorker(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "workerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid workerId")
		return
	}
	wk, err := s.registry.Remove(r.Context(), id)
	if err != nil {
		s.respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, wk)
}
