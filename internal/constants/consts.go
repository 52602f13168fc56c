package constants

import "time"

// Environment variable constants
const (
	EnvEnvironment     = "NODE_ENV"
	EnvVersion         = "APP_VERSION"
	EnvHost            = "HEALTH_PROBE_HOST"
	EnvPort            = "HEALTH_PROBE_PORT"
	EnvMetricsPort     = "HEALTH_PROBE_METRICS_PORT"
	EnvReadTimeout     = "HEALTH_PROBE_READ_TIMEOUT"
	EnvWriteTimeout    = "HEALTH_PROBE_WRITE_TIMEOUT"
	EnvIdleTimeout     = "HEALTH_PROBE_IDLE_TIMEOUT"
	EnvShutdownTimeout = "HEALTH_PROBE_SHUTDOWN_TIMEOUT"
	EnvLogLevel        = "HEALTH_PROBE_LOG_LEVEL"
	EnvLogFormat       = "HEALTH_PROBE_LOG_FORMAT"
	EnvMetricsEnabled  = "HEALTH_PROBE_METRICS_ENABLED"
	EnvTracingEnabled  = "HEALTH_PROBE_TRACING_ENABLED"
	EnvCheckTimeout    = "HEALTH_PROBE_CHECK_TIMEOUT"
	EnvCPUInterval     = "HEALTH_PROBE_CPU_INTERVAL"
	EnvDiskPath        = "HEALTH_PROBE_DISK_PATH"
	EnvFilesystemDir   = "HEALTH_PROBE_FS_DIR"
	EnvDatabaseURL     = "DATABASE_URL"
	EnvRedisAddr       = "REDIS_ADDR"
	EnvRedisPassword   = "REDIS_PASSWORD"
	EnvRateLimit       = "HEALTH_PROBE_RATE_LIMIT_ENABLED"
	EnvHotReload       = "HEALTH_PROBE_HOT_RELOAD"
)

// Application metadata defaults
const (
	DefaultEnvironment = "development"
	DefaultVersion     = "1.0.0"
	ServiceName        = "go-health-probe"
)

// Overall and per-service status values
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
)

// Service names as they appear under "services"
const (
	ServiceDatabase   = "database"
	ServiceRedis      = "redis"
	ServiceFilesystem = "filesystem"
)

// Placeholder latency hints reported when no connection handle is configured
const (
	DatabaseStubResponseTime = "< 100ms"
	RedisStubResponseTime    = "< 50ms"
)

// Filesystem probe constants
const (
	ProbeFilePattern = "health_check_*"
	ProbeFixedName   = "health_check_test"
	ProbePayload     = "test"
)

// HTTP header constants
const (
	HeaderContentType   = "Content-Type"
	HeaderAllow         = "Allow"
	HeaderRequestID     = "X-Request-ID"
	HeaderXForwardedFor = "X-Forwarded-For"
	HeaderXRealIP       = "X-Real-IP"
)

// Content type constants
const (
	ContentTypeJSON = "application/json"
)

// Rate limiting headers
const (
	HeaderXRateLimitLimit     = "X-RateLimit-Limit"
	HeaderXRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderXRateLimitReset     = "X-RateLimit-Reset"
	HeaderRetryAfter          = "Retry-After"
)

// Rate limiting strategy constants
const (
	RateLimitStrategyIP = "ip"
)

// Rate limiter internal constants
const (
	// RateLimitCleanupInterval is the interval for cleaning up rate limit cache
	RateLimitCleanupInterval = 5 * time.Minute
	// RateLimitMaxCacheSize is the maximum size of the rate limit cache
	RateLimitMaxCacheSize = 10000
)

// Server limits (internal use only - not user configurable)
const (
	// ServerMaxRequestSize is the maximum request body size; the probe takes no body
	ServerMaxRequestSize = 64 * 1024
	// ServerMaxHeaderBytes is the maximum header size
	ServerMaxHeaderBytes = 1 << 20
)

// Error code constants
const (
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Path constants
const (
	PathHealth  = "/api/health"
	PathMetrics = "/metrics"
)
