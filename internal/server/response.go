package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/health"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Methods []string `json:"methods,omitempty"`
}

// sendJSON encodes body and writes it with statusCode. HEAD requests get the
// headers only. Encoding failures become a 500 failure report.
func (s *Server) sendJSON(w http.ResponseWriter, r *http.Request, statusCode int, body any) {
	buf, err := json.Marshal(body)
	if err != nil {
		s.logger.Error("Failed to serialize response", zap.Error(err))
		statusCode = http.StatusInternalServerError
		buf, _ = json.Marshal(health.NewFailureReport(fmt.Errorf("failed to serialize response: %w", err)))
	}

	if s.contract != nil && s.config.Observability.ValidateResponses {
		if err := s.contract.ValidateResponse(statusCode, buf); err != nil {
			s.logger.Warn("Response does not match contract",
				zap.Int("status_code", statusCode),
				zap.Error(err),
			)
		}
	}

	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.WriteHeader(statusCode)

	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(buf)
}

// sendErrorResponse sends a JSON error response
func sendErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: message})
}

// sendMethodNotAllowedResponse sends a 405 Method Not Allowed response
func sendMethodNotAllowedResponse(w http.ResponseWriter, methods []string, requestedMethod string) {
	w.Header().Set(constants.HeaderAllow, allowHeader(methods))
	w.Header().Set(constants.HeaderContentType, constants.ContentTypeJSON)
	w.WriteHeader(http.StatusMethodNotAllowed)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   fmt.Sprintf("Method %s not allowed", requestedMethod),
		Methods: methods,
	})
}
