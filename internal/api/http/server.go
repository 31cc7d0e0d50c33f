package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/execution-hub/fnhub/internal/application/catalog"
	"github.com/execution-hub/fnhub/internal/application/dispatch"
	"github.com/execution-hub/fnhub/internal/consensus"
	"github.com/execution-hub/fnhub/internal/domain/types"
	"github.com/execution-hub/fnhub/internal/domain/worker"
)

// Cluster is the Raft node as seen by the HTTP layer.
type Cluster interface {
	ID() string
	RaftAddr() string
	State() string
	IsLeader() bool
	LeaderAddr() string
	LeaderNodeID() string
	Stats() map[string]string
	AddVoter(ctx context.Context, nodeID, raftAddr string) error
	RemoveServer(ctx context.Context, nodeID string) error
}

// Server holds dependencies for control-plane handlers.
type Server struct {
	registry       worker.Registry
	catalog        *catalog.Catalog
	dispatcher     *dispatch.Dispatcher
	cluster        Cluster
	requestTimeout time.Duration
	logger         zerolog.Logger
}

// NewServer builds the control-plane API. cluster may be nil when the
// registry is not replicated.
func NewServer(
	registry worker.Registry,
	catalog *catalog.Catalog,
	dispatcher *dispatch.Dispatcher,
	cluster Cluster,
	requestTimeout time.Duration,
	logger zerolog.Logger,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		registry:       registry,
		catalog:        catalog,
		dispatcher:     dispatcher,
		cluster:        cluster,
		requestTimeout: requestTimeout,
		logger:         logger.With().Str("service", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.requestTimeout))

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/workers", func(r chi.Router) {
			r.Post("/", s.registerWorker)
			r.Get("/", s.listWorkers)
			r.Get("/{workerId}", s.getWorker)
			r.Patch("/{workerId}", s.patchWorker)
			r.Delete("/{workerId}", s.removeWorker)
		})

		r.Route("/functions", func(r chi.Router) {
			r.Post("/", s.registerFunction)
			r.Get("/", s.listFunctions)
			r.Get("/{functionId}", s.getFunction)
		})

		r.Route("/paths", func(r chi.Router) {
			r.Get("/", s.listPaths)
			r.Put("/{root}", s.bindPath)
			r.Put("/{root}/*", s.bindPath)
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.listExecutions)
			r.Get("/{executionId}", s.getExecution)
		})

		r.Route("/cluster", func(r chi.Router) {
			r.Get("/", s.clusterStatus)
			r.Post("/join", s.clusterJoin)
			r.Post("/remove", s.clusterRemove)
		})
	})

	r.Post("/api/{root}", s.invoke)
	r.Post("/api/{root}/*", s.invoke)

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	available := worker.StatusAvailable
	workers, err := s.registry.List(r.Context(), &available)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "UNHEALTHY", err.Error())
		return
	}
	out := map[string]any{
		"ok":               true,
		"availableWorkers": len(workers),
		"functions":        len(s.catalog.ListFunctions()),
	}
	if s.cluster != nil {
		out["nodeId"] = s.cluster.ID()
		out["state"] = s.cluster.State()
		out["leader"] = s.cluster.LeaderAddr()
	}
	respondJSON(w, http.StatusOK, out)
}

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondRegistryError maps registry failures, including Raft leadership.
func (s *Server) respondRegistryError(w http.ResponseWriter, err error) {
	var notLeader *consensus.NotLeaderError
	switch {
	case errors.As(err, &notLeader):
		respondJSON(w, http.StatusConflict, map[string]interface{}{
			"error":     "NOT_LEADER",
			"message":   err.Error(),
			"leader":    notLeader.LeaderAddr,
			"leader_id": notLeader.LeaderID,
		})
	case errors.Is(err, consensus.ErrNotLeader):
		respondError(w, http.StatusConflict, "NOT_LEADER", err.Error())
	case errors.Is(err, worker.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, worker.ErrStatusConflict):
		respondError(w, http.StatusConflict, "STATUS_CONFLICT", err.Error())
	default:
		s.logger.Error().Err(err).Msg("registry operation failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func parseIDParam(r *http.Request, key string) (types.ID, error) {
	return types.ParseID(chi.URLParam(r, key))
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseLimitOffset(r *http.Request, defaultLimit, maxLimit int) (int, int) {
	limit := defaultLimit
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil {
			offset = o
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
