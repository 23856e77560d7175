package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/me/taskmatch/internal/eventbus"
)

// handleSSEEvents streams assignment events via Server-Sent Events.
// GET /api/v1/sse/events[?tenant_id=]
func (s *Server) handleSSEEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		http.Error(w, "event stream disabled", http.StatusServiceUnavailable)
		return
	}

	tenantFilter := r.URL.Query().Get("tenant_id")

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	subID, events := s.bus.Subscribe(64)
	defer s.bus.Unsubscribe(subID)

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, open := <-events:
			if !open {
				return
			}
			if tenantFilter != "" && ev.TenantID != tenantFilter {
				continue
			}
			if err := sendSSEEvent(w, flusher, ev); err != nil {
				s.logger.Debug("sse client disconnected", "subscriber", subID)
				return
			}
		}
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev eventbus.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
