package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/taskmatch/pkg/model"
)

// handleListWorkers returns a tenant's active workers, optionally
// filtered by ?role=.
func (s *Server) handleListWorkers(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tenantID := chi.URLParam(r, "tenantID")

	var roles []string
	if role := r.URL.Query().Get("role"); role != "" {
		roles = []string{role}
	}

	workers, err := s.store.ListEligibleWorkers(r.Context(), tenantID, roles)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	respondList(w, reqID, workers, &model.Pagination{
		Total: len(workers),
		Limit: len(workers),
	})
}
