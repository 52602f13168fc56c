package health

import (
	"context"
	"fmt"
	"time"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

// Pinger is satisfied by *pgxpool.Pool
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseChecker pings the database. Without a pinger it reports a healthy
// placeholder entry.
type DatabaseChecker struct {
	pinger Pinger
}

func NewDatabaseChecker(pinger Pinger) *DatabaseChecker {
	return &DatabaseChecker{pinger: pinger}
}

func (c *DatabaseChecker) Name() string {
	return constants.ServiceDatabase
}

func (c *DatabaseChecker) Check(ctx context.Context) (ServiceStatus, error) {
	if c.pinger == nil {
		return healthyStatus(constants.DatabaseStubResponseTime), nil
	}

	start := time.Now()
	if err := c.pinger.Ping(ctx); err != nil {
		return ServiceStatus{}, fmt.Errorf("database ping failed: %w", err)
	}
	return healthyStatus(formatLatency(time.Since(start))), nil
}
