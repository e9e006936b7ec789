package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hamed0406/dnsfailover/internal/engine"
	"github.com/hamed0406/dnsfailover/internal/httpapi/middleware"
	"github.com/hamed0406/dnsfailover/internal/report"
)

// StatusSource is what the HTTP layer needs from the engine.
type StatusSource interface {
	Status() []engine.PolicyStatus
	Report(ctx context.Context, policyID string, start, end time.Time) (*report.Report, error)
	ForceReconverge(ctx context.Context, policyID string) error
}

type Server struct {
	Logger *zap.Logger
	Engine StatusSource
	Keys   middleware.Keys
}

func NewServer(l *zap.Logger, e StatusSource, keys middleware.Keys) *Server {
	return &Server{Logger: l, Engine: e, Keys: keys}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)
	r.Use(middleware.RateLimit(240, 60))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/reports/{policyID}", s.handleReport)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAdmin(s.Keys))
		r.Post("/api/policies/{policyID}/reconverge", s.handleReconverge)
	})

	return r
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Engine.Status())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")

	// Default window: the last 24 hours.
	end := time.Now().UTC()
	start := end.Add(-24 * time.Hour)
	if q := r.URL.Query().Get("start"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			http.Error(w, "bad start time", http.StatusBadRequest)
			return
		}
		start = t
	}
	if q := r.URL.Query().Get("end"); q != "" {
		t, err := time.Parse(time.RFC3339, q)
		if err != nil {
			http.Error(w, "bad end time", http.StatusBadRequest)
			return
		}
		end = t
	}
	if !end.After(start) {
		http.Error(w, "end must be after start", http.StatusBadRequest)
		return
	}

	rep, err := s.Engine.Report(r.Context(), policyID, start, end)
	if err != nil {
		s.Logger.Warn("report_failed", zap.String("policy", policyID), zap.Error(err))
		http.Error(w, "report error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, rep)
}

func (s *Server) handleReconverge(w http.ResponseWriter, r *http.Request) {
	policyID := chi.URLParam(r, "policyID")
	if err := s.Engine.ForceReconverge(r.Context(), policyID); err != nil {
		s.Logger.Warn("reconverge_failed", zap.String("policy", policyID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	s.Logger.Info("reconverge_forced", zap.String("policy", policyID))
	writeJSON(w, map[string]string{"status": "converged", "policy": policyID})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
