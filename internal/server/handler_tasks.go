package server

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/me/taskmatch/pkg/model"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tenantID := chi.URLParam(r, "tenantID")

	opts := model.DefaultListOptions()
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("limit must be an integer"))
			return
		}
		opts.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("offset must be an integer"))
			return
		}
		opts.Offset = n
	}
	if v := r.URL.Query().Get("status"); v != "" {
		if !validStatusFilter(v) {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("unknown status "+v))
			return
		}
		opts.Status = v
	}
	opts.Clamp()

	tasks, total, err := s.store.ListTasks(r.Context(), tenantID, opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	respondList(w, reqID, tasks, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+len(tasks) < total,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", taskID))
		return
	}
	respondOK(w, reqID, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	taskID := chi.URLParam(r, "taskID")

	task, err := s.store.GetTask(r.Context(), taskID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if task == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("task", taskID))
		return
	}

	if err := s.store.SoftDeleteTask(r.Context(), taskID); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	respondOK(w, reqID, map[string]string{"id": taskID, "deleted": "true"})
}

func validStatusFilter(s string) bool {
	switch model.TaskStatus(s) {
	case model.TaskStatusUnassigned, model.TaskStatusAssigned, model.TaskStatusInProgress,
		model.TaskStatusCompleted, model.TaskStatusCancelled:
		return true
	}
	return false
}
