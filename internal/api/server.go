// Package api exposes the ops HTTP surface: health probes, Prometheus
// metrics, and job submission.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/structharvest/harvester/internal/capsule"
)

// Enqueuer accepts jobs for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, job capsule.Job) error
}

// Server wires HTTP handlers to the job queue.
type Server struct {
	router   chi.Router
	enqueuer Enqueuer
	owner    string
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes. owner is the
// owner slug applied to jobs submitted without one.
func NewServer(enqueuer Enqueuer, owner string, logger *zap.Logger) *Server {
	s := &Server{
		enqueuer: enqueuer,
		owner:    owner,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/jobs", s.submitJob)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type jobRequest struct {
	OwnerSlug string `json:"owner_slug"`
	URL       string `json:"url"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}
	if req.URL == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "url is required"})
		return
	}
	if req.OwnerSlug == "" {
		req.OwnerSlug = s.owner
	}

	job := capsule.Job{OwnerSlug: req.OwnerSlug, URL: req.URL}
	if err := s.enqueuer.Enqueue(r.Context(), job); err != nil {
		s.logger.Error("job enqueue failed", zap.String("url", req.URL), zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "queue unavailable"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"url":    req.URL,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
