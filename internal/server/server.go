package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/me/taskmatch/internal/assignment"
	"github.com/me/taskmatch/internal/config"
	"github.com/me/taskmatch/internal/eventbus"
	"github.com/me/taskmatch/internal/scheduler"
	"github.com/me/taskmatch/internal/store"
)

// Server is the taskmatch REST API server.
type Server struct {
	router    chi.Router
	logger    *slog.Logger
	config    config.ServerConfig
	startTime time.Time
	store     store.Store
	machine   *assignment.Machine
	scheduler scheduler.Scheduler
	bus       *eventbus.Bus
}

// New creates a Server with all routes registered. sched may be nil when
// no timers are wanted; bus may be nil to disable the SSE stream.
func New(cfg config.ServerConfig, st store.Store, machine *assignment.Machine, sched scheduler.Scheduler, bus *eventbus.Bus, logger *slog.Logger) *Server {
	s := &Server{
		router:    chi.NewRouter(),
		logger:    logger.With("component", "server"),
		config:    cfg,
		startTime: time.Now(),
		store:     st,
		machine:   machine,
		scheduler: sched,
		bus:       bus,
	}
	s.routes()
	return s
}

// StartScheduler begins the assignment timers in a background goroutine.
func (s *Server) StartScheduler(ctx context.Context) {
	if s.scheduler == nil {
		return
	}
	go func() {
		if err := s.scheduler.Start(ctx); err != nil && err != context.Canceled {
			s.logger.Error("scheduler stopped", "error", err)
		}
	}()
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(cors.New(cors.Options{
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
	}).Handler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", s.handleDiscovery)
		r.Get("/health", s.handleHealth)

		r.Route("/tenants/{tenantID}", func(r chi.Router) {
			r.Get("/agent-config", s.handleGetAgentConfig)
			r.Put("/agent-config", s.handlePutAgentConfig)
			r.Post("/assignments/run", s.handleTriggerRun)
			r.Get("/tasks", s.handleListTasks)
			r.Get("/workers", s.handleListWorkers)
		})

		r.Route("/tasks/{taskID}", func(r chi.Router) {
			r.Get("/", s.handleGetTask)
			r.Delete("/", s.handleDeleteTask)
			r.Post("/approve", s.handleApprove)
			r.Post("/reject", s.handleReject)
			r.Post("/status", s.handleUpdateStatus)
		})

		r.Get("/runs", s.handleListRuns)

		r.Route("/sse", func(r chi.Router) {
			r.Get("/events", s.handleSSEEvents)
		})
	})
}
