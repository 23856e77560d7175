package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/taskmatch/pkg/model"
)

// handleGetAgentConfig returns the tenant's stored configuration. A tenant
// that was never configured is a 404; defaults only apply inside the matcher.
func (s *Server) handleGetAgentConfig(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tenantID := chi.URLParam(r, "tenantID")

	cfg, err := s.store.GetAgentConfig(r.Context(), tenantID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}
	if cfg == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("agent config", tenantID))
		return
	}
	respondOK(w, reqID, cfg)
}

// handlePutAgentConfig validates and stores the tenant configuration,
// then reconciles the tenant's timer so changes take effect immediately.
func (s *Server) handlePutAgentConfig(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	tenantID := chi.URLParam(r, "tenantID")

	var cfg model.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid JSON body: "+err.Error()))
		return
	}
	cfg.TenantID = tenantID

	if details := validateAgentConfig(&cfg); len(details) > 0 {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError("invalid agent config", details...))
		return
	}

	cfg.UpdatedAt = time.Now().UTC()
	if err := s.store.PutAgentConfig(r.Context(), &cfg); err != nil {
		respondError(w, reqID, http.StatusInternalServerError, model.NewInternalError(err.Error()))
		return
	}

	if s.scheduler != nil {
		if err := s.scheduler.Reconcile(r.Context(), tenantID); err != nil {
			s.logger.Error("reconcile after config update", "tenant_id", tenantID, "error", err)
		}
	}

	respondOK(w, reqID, &cfg)
}

func validateAgentConfig(cfg *model.AgentConfig) []model.FieldError {
	var details []model.FieldError
	weights := map[string]float64{
		"weights.skill_match":  cfg.Weights.SkillMatch,
		"weights.availability": cfg.Weights.Availability,
		"weights.proximity":    cfg.Weights.Proximity,
		"weights.workload":     cfg.Weights.Workload,
	}
	for field, v := range weights {
		if v < 0 {
			details = append(details, model.FieldError{Field: field, Message: "must not be negative"})
		}
	}
	if cfg.FrequencyMinutes < 0 {
		details = append(details, model.FieldError{Field: "frequency_minutes", Message: "must not be negative"})
	}
	if cfg.MaxTasksPerWorker < 0 {
		details = append(details, model.FieldError{Field: "max_tasks_per_worker", Message: "must not be negative"})
	}
	return details
}
