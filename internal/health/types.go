// Package health assembles the health report: it runs the dependency
// checkers, folds their outcomes into per-service entries and combines them
// with a system metrics snapshot.
package health

import (
	"net/http"
	"time"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/sysmetrics"
)

// ServiceStatus is the outcome of one dependency check as it appears under
// "services" in the report.
type ServiceStatus struct {
	Status       string    `json:"status"`
	ResponseTime string    `json:"response_time,omitempty"`
	LastCheck    time.Time `json:"last_check"`
	Error        string    `json:"error,omitempty"`
	Writable     *bool     `json:"writable,omitempty"`
}

// Healthy reports whether the entry is healthy
func (s ServiceStatus) Healthy() bool {
	return s.Status == constants.StatusHealthy
}

// Report is the body of a 200 or 503 response
type Report struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	Environment string                   `json:"environment"`
	Version     string                   `json:"version"`
	System      sysmetrics.Metrics       `json:"system"`
	Services    map[string]ServiceStatus `json:"services"`
}

// HTTPStatus maps the overall status to the response code
func (r Report) HTTPStatus() int {
	if r.Status == constants.StatusHealthy {
		return http.StatusOK
	}
	return http.StatusServiceUnavailable
}

// FailureReport is the body of a 500 response
type FailureReport struct {
	Status    string    `json:"status"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// NewFailureReport builds a FailureReport stamped with the current time
func NewFailureReport(err error) FailureReport {
	return FailureReport{
		Status:    constants.StatusUnhealthy,
		Error:     err.Error(),
		Timestamp: now(),
	}
}

// Metadata identifies the deployment in every report
type Metadata struct {
	Environment string
	Version     string
}

// now returns the current time in UTC without a monotonic reading
var now = func() time.Time {
	return time.Now().UTC()
}

func boolPtr(v bool) *bool {
	return &v
}
