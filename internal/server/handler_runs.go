package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/me/taskmatch/pkg/model"
)

// handleListRuns returns the execution history, newest first.
// Filters: ?job=, ?tenant_id=, ?status=, ?since=RFC3339, ?limit=.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	qp := r.URL.Query()

	q := model.RunQuery{
		JobName:  qp.Get("job"),
		TenantID: qp.Get("tenant_id"),
		Status:   model.RunStatus(qp.Get("status")),
	}
	if v := qp.Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("since must be an RFC3339 timestamp"))
			return
		}
		q.Since = &since
	}
	if v := qp.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("limit must be a non-negative integer"))
			return
		}
		q.Limit = n
	}

	runs, err := s.store.ListRunRecords(r.Context(), q)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	respondList(w, reqID, runs, &model.Pagination{
		Total: len(runs),
		Limit: len(runs),
	})
}
