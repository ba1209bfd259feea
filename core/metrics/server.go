package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/projectbot/core/logger"
)

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Server exposes /healthz and /metrics.
type Server struct {
	srv *http.Server
}

// NewServer builds the ops server. Checks run on every /healthz request.
func NewServer(listen string, checks map[string]HealthFunc) *Server {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Get("/healthz", healthHandler(checks))
	r.Handle("/metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              listen,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
		},
	}
}

// Handler returns the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	logger.Info(context.Background(), "ops", "listen",
		slog.String("status", "ok"),
		slog.String("listen", s.srv.Addr),
	)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func healthHandler(checks map[string]HealthFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		for name, check := range checks {
			if check == nil {
				continue
			}
			if err := check(ctx); err != nil {
				logger.Warn(ctx, "ops", "health.fail",
					slog.String("status", "fail"),
					slog.String("check", name),
					slog.String("err", err.Error()),
				)
				http.Error(w, name+": unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
