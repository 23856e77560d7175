package server

import "net/http"

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name        string         `json:"name"`
	Version     string         `json:"version"`
	Description string         `json:"description"`
	Endpoints   []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:        "taskmatch API",
		Version:     "v1",
		Description: "Multi-tenant task auto-assignment: scoring, matching, and assignment lifecycle",
		Endpoints: []endpointInfo{
			{"/api/v1/tenants/{tenant_id}/agent-config", []string{"GET", "PUT"}, "Tenant auto-assignment configuration"},
			{"/api/v1/tenants/{tenant_id}/assignments/run", []string{"POST"}, "Trigger an assignment batch immediately"},
			{"/api/v1/tenants/{tenant_id}/tasks", []string{"GET"}, "List a tenant's tasks, ?status= to filter"},
			{"/api/v1/tenants/{tenant_id}/workers", []string{"GET"}, "List a tenant's active workers"},
			{"/api/v1/tasks/{task_id}", []string{"GET", "DELETE"}, "Single task detail / soft delete"},
			{"/api/v1/tasks/{task_id}/approve", []string{"POST"}, "Approve the pending assignment proposal"},
			{"/api/v1/tasks/{task_id}/reject", []string{"POST"}, "Reject the pending assignment proposal"},
			{"/api/v1/tasks/{task_id}/status", []string{"POST"}, "Advance the task through its lifecycle"},
			{"/api/v1/runs", []string{"GET"}, "Execution history, ?job=&tenant_id=&status=&since=&limit="},
			{"/api/v1/sse/events", []string{"GET"}, "Assignment event stream (Server-Sent Events)"},
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
		},
	})
}
