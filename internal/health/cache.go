package health

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

// CacheChecker sends PING to redis. Without a client it reports a healthy
// placeholder entry.
type CacheChecker struct {
	client *redis.Client
}

func NewCacheChecker(client *redis.Client) *CacheChecker {
	return &CacheChecker{client: client}
}

func (c *CacheChecker) Name() string {
	return constants.ServiceRedis
}

func (c *CacheChecker) Check(ctx context.Context) (ServiceStatus, error) {
	if c.client == nil {
		return healthyStatus(constants.RedisStubResponseTime), nil
	}

	start := time.Now()
	if err := c.client.Ping(ctx).Err(); err != nil {
		return ServiceStatus{}, fmt.Errorf("redis ping failed: %w", err)
	}
	return healthyStatus(formatLatency(time.Since(start))), nil
}
