package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	apperrors "github.com/copyleftdev/lmfit/internal/errors"
	"github.com/copyleftdev/lmfit/internal/logging"
)

// Handler returns the complete HTTP handler: request logging, panic
// recovery, health and metrics endpoints and the fit API.
func (s *Server) Handler() http.Handler {
	logger := s.logger.WithFields(map[string]interface{}{"component": "http"})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(apperrors.RecoveryMiddleware(logger))
	r.Use(apperrors.ErrorHandler(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	s.RegisterRoutes(r)
	return r
}
