package server

import (
	"net/http"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/health"
	"github.com/leslieo2/go-health-probe/internal/server/middleware"
)

var healthMethods = []string{http.MethodGet, http.MethodHead}

// buildHandler registers the probe route and wraps the mux in the
// middleware chain.
func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	var probe http.Handler = http.HandlerFunc(s.healthHandler)
	if s.rateLimiter != nil {
		probe = s.rateLimiter.Middleware(probe)
	}

	mux.Handle(constants.PathHealth, allowMethods(healthMethods, probe))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		sendErrorResponse(w, http.StatusNotFound, "Not found: "+r.URL.Path)
	})

	return s.applyMiddleware(mux)
}

// allowMethods answers any method outside methods with a 405
func allowMethods(methods []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, m := range methods {
			if r.Method == m {
				next.ServeHTTP(w, r)
				return
			}
		}
		sendMethodNotAllowedResponse(w, methods, r.Method)
	})
}

// healthHandler serves GET and HEAD /api/health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.StartSpan(r.Context(), "health_check",
		attribute.String("http.method", r.Method),
		attribute.String("http.path", constants.PathHealth),
		attribute.String("http.user_agent", r.UserAgent()),
	)
	defer span.End()

	requestID := middleware.RequestIDFromContext(ctx)

	report, err := s.reporter.Report(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error("Health report failed",
			zap.String("request_id", requestID),
			zap.Error(err),
		)
		s.recordReport(constants.StatusUnhealthy)
		s.sendJSON(w, r, http.StatusInternalServerError, health.NewFailureReport(err))
		return
	}

	statusCode := report.HTTPStatus()
	span.SetAttributes(
		attribute.String("health.status", report.Status),
		attribute.Int("http.status_code", statusCode),
	)

	if report.Status != constants.StatusHealthy {
		span.SetStatus(codes.Error, report.Status)
		s.logger.Warn("Health report degraded",
			zap.String("request_id", requestID),
			zap.Strings("unhealthy_services", unhealthyServices(report)),
		)
	} else {
		s.logger.Debug("Health report completed",
			zap.String("request_id", requestID),
			zap.String("status", report.Status),
		)
	}

	s.recordReport(report.Status)
	s.sendJSON(w, r, statusCode, report)
}

func (s *Server) recordReport(status string) {
	if s.metrics != nil {
		s.metrics.RecordReport(status)
	}
}

func unhealthyServices(report health.Report) []string {
	var names []string
	for name, status := range report.Services {
		if !status.Healthy() {
			names = append(names, name+": "+status.Error)
		}
	}
	sort.Strings(names)
	return names
}

func allowHeader(methods []string) string {
	return strings.Join(methods, ", ")
}
