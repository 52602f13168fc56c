package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/health"
)

// RecoveryMiddleware turns a panic in next into a 500 failure report. If the
// handler already started the response only the log entry is written.
func RecoveryMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := NewResponseWriter(w)

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				err := fmt.Errorf("panic: %v", rec)
				logger.Error("Recovered from panic",
					zap.String("request_id", RequestIDFromContext(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Error(err),
					zap.Stack("stack"),
				)

				if wrapped.WroteHeader() {
					return
				}
				wrapped.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
				wrapped.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(wrapped).Encode(health.NewFailureReport(err))
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
