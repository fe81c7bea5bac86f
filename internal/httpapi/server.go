// Package httpapi exposes the progression engine over JSON HTTP.
package httpapi

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/skillforge/internal/progression"
)

// ReadinessCheck is a named dependency probe used by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Config holds dependencies for the HTTP server.
type Config struct {
	Engine   *progression.Engine
	Sessions progression.SessionStore
	Notifier *progression.Notifier
	Checks   []ReadinessCheck
}

// Server routes HTTP requests to the progression engine.
type Server struct {
	engine   *progression.Engine
	sessions progression.SessionStore
	notifier *progression.Notifier
	checks   []ReadinessCheck
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = progression.NewMemorySessionStore(progression.DefaultSessionTTL)
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = progression.NewNotifier()
	}
	return &Server{
		engine:   cfg.Engine,
		sessions: sessions,
		notifier: notifier,
		checks:   cfg.Checks,
	}
}

// Handler returns the HTTP router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)

	mux.HandleFunc("POST /v1/plans", s.handleCreatePlan)
	mux.HandleFunc("GET /v1/plans/{id}", s.handleGetPlan)
	mux.HandleFunc("GET /v1/plans/{id}/events", s.handlePlanEvents)
	mux.HandleFunc("POST /v1/plans/{id}/assessments", s.handleStartAssessment)
	mux.HandleFunc("GET /v1/learners/{owner}/plans", s.handleListPlans)
	mux.HandleFunc("GET /v1/learners/{owner}/report.xlsx", s.handleReport)

	mux.HandleFunc("GET /v1/assessments/{sid}", s.handleGetAssessment)
	mux.HandleFunc("PUT /v1/assessments/{sid}/answers/{q}", s.handleRecordAnswer)
	mux.HandleFunc("POST /v1/assessments/{sid}/submit", s.handleSubmitAssessment)

	mux.HandleFunc("GET /v1/credentials/verify", s.handleVerifyCredential)
	return logRequests(mux)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
			failed[c.Name] = err.Error()
		}
	}
	if len(failed) > 0 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed for the websocket upgrade on the events stream.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.status = http.StatusSwitchingProtocols
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			return
		}
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
