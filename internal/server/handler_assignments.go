package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/me/taskmatch/pkg/model"
)

// handleTriggerRun runs an assignment batch for the tenant immediately.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tenantID := chi.URLParam(r, "tenantID")

	if s.scheduler == nil {
		respondError(w, reqID, http.StatusServiceUnavailable,
			model.NewInternalError("scheduler not running"))
		return
	}

	result, err := s.scheduler.TriggerNow(r.Context(), tenantID)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, result)
}

// handleApprove commits the task's pending assignment proposal.
func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	task, err := s.machine.Approve(r.Context(), taskID)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

// handleReject declines the task's pending assignment proposal, keeping
// the rejected worker out of future proposals for this task.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		// An empty body is fine; the reason is optional.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	task, err := s.machine.Reject(r.Context(), taskID, req.Reason)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}

// handleUpdateStatus advances a task through its lifecycle
// (ASSIGNED -> IN_PROGRESS -> COMPLETED, or cancellation).
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	var req struct {
		Status model.TaskStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	if req.Status == "" {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("status is required",
				model.FieldError{Field: "status", Message: "must be one of ASSIGNED, IN_PROGRESS, COMPLETED, CANCELLED"}))
		return
	}

	task, err := s.machine.Transition(r.Context(), taskID, req.Status)
	if err != nil {
		respondAPIError(w, reqID, err)
		return
	}
	respondOK(w, reqID, task)
}
