package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/metrics"
)

// Data types for requests

type commitRequest struct {
	Document json.RawMessage `json:"document"`
	Message  string          `json:"message,omitempty"`
	Bump     string          `json:"bump,omitempty"`
	Branch   string          `json:"branch,omitempty"`
}

type rollbackRequest struct {
	TargetVersion string `json:"target_version"`
	Reason        string `json:"reason,omitempty"`
}

type branchCreateRequest struct {
	Name          string `json:"name"`
	BaseVersion   string `json:"base_version"`
	MergeStrategy string `json:"merge_strategy,omitempty"`
}

type mergeRequest struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Message string `json:"message,omitempty"`
}

type deleteRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Version handlers

func (s *Server) commitVersion(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if len(req.Document) == 0 {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "document is required")
		return
	}

	workflowID := chi.URLParam(r, "workflowId")
	actor := actorFromRequest(r)
	v, err := s.versioningSvc.Commit(r.Context(), workflowID, req.Document, actor, req.Message, req.Bump, req.Branch)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	branchName := r.URL.Query().Get("branch")
	limit := parseLimit(r, 50, 200)

	versions, err := s.storeSvc.ListVersions(r.Context(), workflowID, branchName, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"versions": versions})
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	ver := chi.URLParam(r, "version")

	v, err := s.storeSvc.GetVersion(r.Context(), workflowID, ver)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, v)
}

func (s *Server) deleteVersion(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	ver := chi.URLParam(r, "version")
	var req deleteRequest
	_ = decodeBody(r, &req)

	actor := actorFromRequest(r)
	if err := s.storeSvc.SoftDeleteVersion(r.Context(), workflowID, ver, actor, req.Reason); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"workflow_id": workflowID, "version": ver, "deleted": true})
}

// Compare, rollback

func (s *Server) compareVersions(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	from := r.URL.Query().Get("from")
	to := r.URL.Query().Get("to")
	if from == "" || to == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "from and to are required")
		return
	}

	if r.URL.Query().Get("full") == "true" {
		d, err := s.diffingSvc.Compare(r.Context(), workflowID, from, to)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
		return
	}

	summary, err := s.versioningSvc.Compare(r.Context(), workflowID, from, to)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (s *Server) rollbackVersion(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.TargetVersion == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "target_version is required")
		return
	}

	workflowID := chi.URLParam(r, "workflowId")
	actor := actorFromRequest(r)
	v, err := s.versioningSvc.Rollback(r.Context(), workflowID, req.TargetVersion, actor, req.Reason)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

// Branch handlers

func (s *Server) createBranch(w http.ResponseWriter, r *http.Request) {
	var req branchCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Name == "" || req.BaseVersion == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "name and base_version are required")
		return
	}

	workflowID := chi.URLParam(r, "workflowId")
	actor := actorFromRequest(r)
	b, err := s.versioningSvc.CreateBranch(r.Context(), workflowID, req.Name, req.BaseVersion, actor, branch.MergeStrategy(req.MergeStrategy))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, b)
}

func (s *Server) listBranches(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	branches, err := s.storeSvc.ListBranches(r.Context(), workflowID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"branches": branches})
}

func (s *Server) mergeBranches(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Source == "" || req.Target == "" {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "source and target are required")
		return
	}

	workflowID := chi.URLParam(r, "workflowId")
	actor := actorFromRequest(r)
	v, err := s.versioningSvc.Merge(r.Context(), workflowID, req.Source, req.Target, actor, req.Message)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, v)
}

// Metrics handlers

func (s *Server) reportExecution(w http.ResponseWriter, r *http.Request) {
	var result metrics.ExecutionResult
	if err := decodeBody(r, &result); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}

	workflowID := chi.URLParam(r, "workflowId")
	ver := chi.URLParam(r, "version")
	m, err := s.storeSvc.ReportExecution(r.Context(), workflowID, ver, result)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) getMetrics(w http.ResponseWriter, r *http.Request) {
	workflowID := chi.URLParam(r, "workflowId")
	ver := chi.URLParam(r, "version")
	m, err := s.storeSvc.GetMetrics(r.Context(), workflowID, ver)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// SSE

func (s *Server) sseEndpoint(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "streaming unsupported")
		return
	}

	clientID := middleware.GetReqID(r.Context())
	client := s.hub.Subscribe(clientID)
	defer s.hub.Unsubscribe(clientID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-client.Events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
