// Package httpapi serves the dashboard API over the latest published snapshot.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scorecard-insights-go/internal/logger"
	"scorecard-insights-go/internal/pipeline"
)

// SnapshotSource exposes the most recent published snapshot.
type SnapshotSource interface {
	Snapshot() pipeline.Snapshot
}

// Notifier upgrades a request to a refresh-notice websocket.
type Notifier interface {
	Serve(w http.ResponseWriter, r *http.Request, userID string)
}

type Options struct {
	Snapshots SnapshotSource
	Notifier  Notifier
	// Auth must place an auth.Session on the request context.
	Auth     func(http.Handler) http.Handler
	Location *time.Location
	Now      func() time.Time
}

type Server struct {
	snapshots SnapshotSource
	notifier  Notifier
	auth      func(http.Handler) http.Handler
	loc       *time.Location
	now       func() time.Time
	log       *logger.Logger
}

func NewServer(opts Options, log *logger.Logger) *Server {
	s := &Server{
		snapshots: opts.Snapshots,
		notifier:  opts.Notifier,
		auth:      opts.Auth,
		loc:       opts.Location,
		now:       opts.Now,
		log:       log.Component("http"),
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Routes builds the router. Everything under /api/v1 requires a session.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthHandler)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if s.auth != nil {
				r.Use(s.auth)
			}
			r.Get("/products", s.productsHandler)
			r.Get("/domains", s.domainsHandler)
			r.Get("/executives", s.executivesHandler)
			r.Get("/conversations", s.conversationsHandler)
			r.Get("/stats", s.statsHandler)
			r.Get("/stats/export.xlsx", s.exportHandler)
			if s.notifier != nil {
				r.Get("/ws", s.websocketHandler)
			}
		})
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-ID") == "" {
			r.Header.Set("X-Request-ID", middleware.GetReqID(r.Context()))
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		entry := s.log.WithRequest(r).
			WithField("status", ww.Status()).
			WithField("bytes", ww.BytesWritten()).
			WithField("duration_ms", time.Since(start).Milliseconds())
		if ww.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Info("request served")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshots.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"state":      snap.State,
		"generation": snap.Generation,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
