package server

import (
	"net/http"
	"time"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/server/middleware"
)

// applyMiddleware wraps handler so that, from the outside in, requests get
// an ID, are logged, are measured, recover from panics and have their body
// size capped.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	// Apply middleware chain in reverse order
	handler = middleware.RequestSizeLimitMiddleware(constants.ServerMaxRequestSize)(handler)
	handler = middleware.RecoveryMiddleware(s.logger.Logger)(handler)
	handler = s.instrument(handler)
	handler = middleware.LoggingMiddleware(s.logger.Logger)(handler)
	handler = middleware.RequestIDMiddleware()(handler)

	return handler
}

// instrument records request metrics for every response, including the ones
// produced by the rate limiter and the recovery middleware.
func (s *Server) instrument(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewResponseWriter(w)

		next.ServeHTTP(wrapped, r)

		endpoint := r.URL.Path
		if endpoint != constants.PathHealth {
			endpoint = "other"
		}
		s.metrics.RecordRequest(r.Method, endpoint, wrapped.StatusCode(), time.Since(start), wrapped.BytesWritten())
	})
}
