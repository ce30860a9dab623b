// Package server wires the chi router: the job dispatch table, the health
// family, and the version endpoint, wrapped in the request ID and recovery
// middleware from internal/server/middleware.
package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/3leaps/jobqueue/internal/apperrors"
	"github.com/3leaps/jobqueue/internal/server/handlers"
	appmiddleware "github.com/3leaps/jobqueue/internal/server/middleware"
	"github.com/3leaps/jobqueue/pkg/jobmanager"
)

// APIPrefix is the version tag every job-queue route is mounted under.
const APIPrefix = "/0.1.0"

// Server owns the HTTP router for the job queue service.
type Server struct {
	host   string
	port   int
	router chi.Router
}

// New builds a Server dispatching job-queue routes to mgr. mgr may be nil
// only in tests that exercise routing/error-handling behavior unrelated to
// job operations (e.g. the 404/405 and health-check paths).
func New(host string, port int, mgr *jobmanager.Manager) *Server {
	s := &Server{host: host, port: port, router: chi.NewRouter()}

	s.router.Use(appmiddleware.RequestID)
	s.router.Use(appmiddleware.Recovery)

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RespondWithError(w, apperrors.New(apperrors.KindNotFound, "route", "no such route"))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apperrors.RespondWithError(w, apperrors.New(apperrors.KindBadMethod, "route", "method not allowed"))
	})

	s.router.Get("/version", s.versionHandler)
	s.router.Get("/health", handlers.HealthHandler)
	s.router.Get("/health/live", handlers.LivenessHandler)
	s.router.Get("/health/ready", handlers.ReadinessHandler)
	s.router.Get("/health/startup", handlers.StartupHandler)

	if mgr != nil {
		jh := handlers.NewJobHandlers(mgr)
		s.router.Route(APIPrefix, func(r chi.Router) {
			r.Post("/job/new", jh.NewJob)
			r.Get("/jobs", jh.ListJobs)
			r.Post("/job/claim", jh.ClaimJob)
			r.Get("/job/{jobID}/status", jh.Status)
			r.Post("/job/{jobID}/heartbeat", jh.Heartbeat)
			r.Post("/job/{jobID}/complete", jh.Complete)
			r.Post("/job/{jobID}/cancel", jh.Cancel)
		})
	}

	return s
}

func (s *Server) versionHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Port returns the port the server was configured with.
func (s *Server) Port() int {
	return s.port
}

// Addr returns the host:port this server listens on.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.host, s.port)
}
