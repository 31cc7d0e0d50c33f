package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/execution-hub/fnhub/internal/consensus"
)

type clusterJoinRequest struct {
	NodeID   string `json:"node_id"`
	RaftAddr string `json:"raft_addr"`
}

type clusterRemoveRequest struct {
	NodeID string `json:"node_id"`
}

func (s *Server) clusterStatus(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusNotFound, "CLUSTER_DISABLED", "registry is not replicated")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"nodeId":   s.cluster.ID(),
		"raftAddr": s.cluster.RaftAddr(),
		"state":    s.cluster.State(),
		"leader":   s.cluster.LeaderAddr(),
		"leaderId": s.cluster.LeaderNodeID(),
		"stats":    s.cluster.Stats(),
	})
}

func (s *Server) clusterJoin(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusNotFound, "CLUSTER_DISABLED", "registry is not replicated")
		return
	}
	var req clusterJoinRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if strings.TrimSpace(req.NodeID) == "" || strings.TrimSpace(req.RaftAddr) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "node_id and raft_addr are required")
		return
	}
	if err := s.cluster.AddVoter(r.Context(), req.NodeID, req.RaftAddr); err != nil {
		s.respondClusterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) clusterRemove(w http.ResponseWriter, r *http.Request) {
	if s.cluster == nil {
		respondError(w, http.StatusNotFound, "CLUSTER_DISABLED", "registry is not replicated")
		return
	}
	var req clusterRemoveRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if strings.TrimSpace(req.NodeID) == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "node_id is required")
		return
	}
	if err := s.cluster.RemoveServer(r.Context(), req.NodeID); err != nil {
		s.respondClusterError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) respondClusterError(w http.ResponseWriter, err error) {
	if errors.Is(err, consensus.ErrNotLeader) {
		s.respondRegistryError(w, err)
		return
	}
	s.logger.Error().Err(err).Msg("cluster membership change failed")
	respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
}
