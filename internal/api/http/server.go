package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	appDiffing "github.com/revision-hub/revision-hub/internal/application/diffing"
	appStore "github.com/revision-hub/revision-hub/internal/application/store"
	appVersioning "github.com/revision-hub/revision-hub/internal/application/versioning"
	"github.com/revision-hub/revision-hub/internal/domain/branch"
	"github.com/revision-hub/revision-hub/internal/domain/version"
	"github.com/revision-hub/revision-hub/internal/infrastructure/sse"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	storeSvc      *appStore.Service
	diffingSvc    *appDiffing.Service
	versioningSvc *appVersioning.Service
	hub           *sse.Hub
}

func NewServer(
	storeSvc *appStore.Service,
	diffingSvc *appDiffing.Service,
	versioningSvc *appVersioning.Service,
	hub *sse.Hub,
) *Server {
	return &Server{
		storeSvc:      storeSvc,
		diffingSvc:    diffingSvc,
		versioningSvc: versioningSvc,
		hub:           hub,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Route("/workflows/{workflowId}", func(r chi.Router) {
				r.Route("/versions", func(r chi.Router) {
					r.Post("/", s.commitVersion)
					r.Get("/", s.listVersions)
					r.Get("/{version}", s.getVersion)
					r.Delete("/{version}", s.deleteVersion)
					r.Get("/{version}/metrics", s.getMetrics)
					r.Post("/{version}/executions", s.reportExecution)
				})

				r.Get("/compare", s.compareVersions)
				r.Post("/rollback", s.rollbackVersion)

				r.Route("/branches", func(r chi.Router) {
					r.Post("/", s.createBranch)
					r.Get("/", s.listBranches)
				})
				r.Post("/merge", s.mergeBranches)
			})
		})

		r.Get("/events/sse", s.sseEndpoint)
	})

	return r
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

// respondServiceError maps engine sentinel errors to HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, version.ErrNotFound), errors.Is(err, branch.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, version.ErrDuplicate):
		respondError(w, http.StatusConflict, "DUPLICATE_VERSION", err.Error())
	case errors.Is(err, version.ErrInUse):
		respondError(w, http.StatusConflict, "VERSION_IN_USE", err.Error())
	case errors.Is(err, branch.ErrExists):
		respondError(w, http.StatusConflict, "BRANCH_EXISTS", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// actorFromRequest resolves the opaque actor id. Identity resolution
// is owned by the callers; the engine only records the string.
func actorFromRequest(r *http.Request) string {
	actor := r.Header.Get("X-Actor")
	if actor == "" {
		actor = "system"
	}
	return actor
}

func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	limit := defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit
}
