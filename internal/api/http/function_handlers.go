package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/execution-hub/fnhub/internal/application/catalog"
	"github.com/execution-hub/fnhub/internal/domain/function"
	"github.com/execution-hub/fnhub/internal/domain/types"
)

type bindPathRequest struct {
	FunctionID types.ID `json:"functionId"`
}

func (s *Server) registerFunction(w http.ResponseWriter, r *http.Request) {
	var fn function.Function
	if err := decodeBody(r, &fn); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if fn.ID.IsNil() {
		fn.ID = types.NameID(fn.Name)
	}
	if fn.Runtime.Kind == "" {
		fn.Runtime.Kind = function.RuntimeWasm
	}
	if fn.InputType.Kind == "" {
		fn.InputType = function.None
	}
	if err := s.catalog.Register(fn); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	stored, err := s.catalog.FunctionByID(fn.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, stored)
}

func (s *Server) listFunctions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.ListFunctions())
}

func (s *Server) getFunction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "functionId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid functionId")
		return
	}
	fn, err := s.catalog.FunctionByID(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, fn)
}

func (s *Server) listPaths(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.catalog.ListPaths())
}

func (s *Server) bindPath(w http.ResponseWriter, r *http.Request) {
	root := chi.URLParam(r, "root")
	subPath := chi.URLParam(r, "*")
	var req bindPathRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.FunctionID.IsNil() {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "functionId is required")
		return
	}
	if err := s.catalog.BindPath(root, subPath, req.FunctionID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	fn, _ := s.catalog.FunctionByID(req.FunctionID)
	respondJSON(w, http.StatusOK, function.PathEntry{Root: root, SubPath: subPath, Function: fn})
}
