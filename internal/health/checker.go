package health

import (
	"context"
	"fmt"
	"time"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

// Checker probes one dependency. A non-nil error marks the dependency as
// unhealthy; the returned ServiceStatus may still carry fields such as
// Writable that describe the failure.
type Checker interface {
	Name() string
	Check(ctx context.Context) (ServiceStatus, error)
}

// failureTemplater is implemented by checkers whose unhealthy entries carry
// extra fields, such as Writable for the filesystem checker. Evaluate starts
// from the template when the checker itself produced no status.
type failureTemplater interface {
	failureStatus() ServiceStatus
}

func failureStatus(checker Checker) ServiceStatus {
	if t, ok := checker.(failureTemplater); ok {
		return t.failureStatus()
	}
	return ServiceStatus{}
}

type outcome struct {
	status ServiceStatus
	err    error
}

// Evaluate runs checker under timeout and collapses its result into a
// ServiceStatus. Errors, panics and timeouts all become unhealthy entries;
// Evaluate itself never fails.
func Evaluate(ctx context.Context, checker Checker, timeout time.Duration) ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{
					status: failureStatus(checker),
					err:    fmt.Errorf("%s check panicked: %v", checker.Name(), r),
				}
			}
		}()
		status, err := checker.Check(ctx)
		done <- outcome{status: status, err: err}
	}()

	select {
	case res := <-done:
		return collapse(res.status, res.err)
	case <-ctx.Done():
		// A checker that noticed the cancellation may already have answered
		select {
		case res := <-done:
			return collapse(res.status, res.err)
		default:
		}
		return collapse(failureStatus(checker), fmt.Errorf("%s check: %w", checker.Name(), ctx.Err()))
	}
}

func collapse(status ServiceStatus, err error) ServiceStatus {
	if status.LastCheck.IsZero() {
		status.LastCheck = now()
	}
	if err == nil {
		if status.Status == "" {
			status.Status = constants.StatusHealthy
		}
		return status
	}

	status.Status = constants.StatusUnhealthy
	status.ResponseTime = ""
	status.Error = err.Error()
	return status
}

// healthyStatus is a healthy entry stamped with the current time
func healthyStatus(responseTime string) ServiceStatus {
	return ServiceStatus{
		Status:       constants.StatusHealthy,
		ResponseTime: responseTime,
		LastCheck:    now(),
	}
}

func formatLatency(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}
