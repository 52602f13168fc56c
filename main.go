package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/leslieo2/go-health-probe/internal/config"
	"github.com/leslieo2/go-health-probe/internal/contract"
	"github.com/leslieo2/go-health-probe/internal/health"
	"github.com/leslieo2/go-health-probe/internal/hotreload"
	"github.com/leslieo2/go-health-probe/internal/observability"
	"github.com/leslieo2/go-health-probe/internal/security"
	"github.com/leslieo2/go-health-probe/internal/server"
	"github.com/leslieo2/go-health-probe/internal/sysmetrics"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	configFile := pflag.String("config", "", "Path to configuration file (YAML or JSON)")
	cliFlags := config.RegisterFlags(pflag.CommandLine)
	pflag.Usage = printUsage
	pflag.Parse()

	// Load configuration with precedence (CLI > Env > File > Defaults)
	cfg, err := config.LoadConfig(*configFile, cliFlags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := run(cfg, *configFile, cliFlags); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
}

func run(cfg *config.Config, configFile string, cliFlags *config.CLIFlags) error {
	logger, err := observability.NewLogger(cfg.Observability.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slogLevel(cfg.Observability.Logging.Level),
	})))

	metrics := observability.NewMetrics()

	tracer, err := observability.NewTracer(cfg.Observability.Tracing, cfg.App)
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(ctx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	var pinger health.Pinger
	if cfg.Checks.Database.URL != "" {
		pool, err := openDatabase(cfg.Checks.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		pinger = pool
		logger.Info("Database check enabled", zap.Int32("max_conns", cfg.Checks.Database.MaxConns))
	}

	var redisClient *redis.Client
	if cfg.Checks.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Checks.Redis.Addr,
			Password:     cfg.Checks.Redis.Password,
			DB:           cfg.Checks.Redis.DB,
			DialTimeout:  cfg.Checks.Timeout,
			ReadTimeout:  cfg.Checks.Timeout,
			WriteTimeout: cfg.Checks.Timeout,
			PoolSize:     2,
		})
		defer func() { _ = redisClient.Close() }()
		logger.Info("Redis check enabled", zap.String("addr", cfg.Checks.Redis.Addr))
	}

	reporter := health.NewReporter(
		sysmetrics.NewGopsutilSampler(cfg.Checks.CPUInterval, cfg.Checks.DiskPath),
		[]health.Checker{
			health.NewDatabaseChecker(pinger),
			health.NewCacheChecker(redisClient),
			health.NewFilesystemChecker(cfg.Checks.Filesystem.Dir, cfg.Checks.Filesystem.FixedPath),
		},
		cfg.Checks.Timeout,
		health.Metadata{Environment: cfg.App.Environment, Version: cfg.App.Version},
		health.WithTracer(tracer),
		health.WithObserver(func(service string, status health.ServiceStatus, elapsed time.Duration) {
			metrics.RecordCheck(service, status.Healthy(), elapsed)
		}),
	)

	var apiContract *contract.Contract
	if cfg.Observability.ValidateResponses {
		apiContract, err = contract.Load()
		if err != nil {
			return fmt.Errorf("failed to load response contract: %w", err)
		}
	}

	var rateLimiter *security.RateLimiter
	if cfg.Security.RateLimit.Enabled {
		rateLimiter = security.NewRateLimiter(cfg.Security.RateLimit)
		logger.Info("Rate limiting enabled",
			zap.String("strategy", cfg.Security.RateLimit.Strategy),
			zap.Int("rps", cfg.Security.RateLimit.ByIP.RequestsPerSecond),
			zap.Int("burst", cfg.Security.RateLimit.ByIP.BurstSize),
		)
	}

	probeServer, err := server.New(cfg, server.Deps{
		Reporter:    reporter,
		Logger:      logger,
		Metrics:     metrics,
		Tracer:      tracer,
		RateLimiter: rateLimiter,
		Contract:    apiContract,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	probeServer.SetConfigSource(configFile, cliFlags)

	// Hot reload only applies when the configuration came from a file
	if cfg.HotReload.Enabled && configFile != "" {
		hotReloadManager, err := startHotReload(cfg.HotReload, configFile, probeServer)
		if err != nil {
			return err
		}
		defer func() {
			if err := hotReloadManager.Shutdown(context.Background()); err != nil {
				logger.Warn("Failed to shutdown hot reload manager", zap.Error(err))
			}
		}()
		logger.Info("Hot reload enabled", zap.String("file", configFile))
	}

	return probeServer.Start()
}

// openDatabase creates a pool for the database check. Connections are
// opened lazily by the first ping.
func openDatabase(cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid database URL: %w", err)
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = 0

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	return pool, nil
}

func startHotReload(cfg config.HotReloadConfig, configFile string, reloadable hotreload.Reloadable) (*hotreload.Manager, error) {
	manager, err := hotreload.NewManager()
	if err != nil {
		return nil, fmt.Errorf("failed to create hot reload manager: %w", err)
	}

	manager.SetDebounceTime(cfg.Debounce)

	if err := manager.AddWatch(configFile); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}
	if err := manager.RegisterReloadable(reloadable); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to register server for hot reload: %w", err)
	}
	if err := manager.Start(); err != nil {
		manager.Stop()
		return nil, fmt.Errorf("failed to start hot reload: %w", err)
	}

	return manager, nil
}

// slogLevel maps the configured level onto slog, defaulting to info
func slogLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// printUsage prints the usage information
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nServes GET /api/health with system metrics and dependency checks.\n")
	fmt.Fprintf(os.Stderr, "\nFlags:\n")
	pflag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
	fmt.Fprintf(os.Stderr, "  NODE_ENV, APP_VERSION\n")
	fmt.Fprintf(os.Stderr, "  HEALTH_PROBE_HOST, HEALTH_PROBE_PORT, HEALTH_PROBE_METRICS_PORT\n")
	fmt.Fprintf(os.Stderr, "  HEALTH_PROBE_READ_TIMEOUT, HEALTH_PROBE_WRITE_TIMEOUT, HEALTH_PROBE_IDLE_TIMEOUT, HEALTH_PROBE_SHUTDOWN_TIMEOUT\n")
	fmt.Fprintf(os.Stderr, "  HEALTH_PROBE_LOG_LEVEL, HEALTH_PROBE_LOG_FORMAT, HEALTH_PROBE_METRICS_ENABLED, HEALTH_PROBE_TRACING_ENABLED\n")
	fmt.Fprintf(os.Stderr, "  HEALTH_PROBE_CHECK_TIMEOUT, HEALTH_PROBE_CPU_INTERVAL, HEALTH_PROBE_DISK_PATH, HEALTH_PROBE_FS_DIR\n")
	fmt.Fprintf(os.Stderr, "  DATABASE_URL, REDIS_ADDR, REDIS_PASSWORD\n")
	fmt.Fprintf(os.Stderr, "  HEALTH_PROBE_RATE_LIMIT_ENABLED, HEALTH_PROBE_HOT_RELOAD\n")
	fmt.Fprintf(os.Stderr, "\nA .env file in the working directory is loaded first when present.\n")
	fmt.Fprintf(os.Stderr, "\nExample usage:\n")
	fmt.Fprintf(os.Stderr, "  %s --config ./probe.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s --port 8081 --metrics-enabled --database-url postgres://probe@localhost:5432/app\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  NODE_ENV=production APP_VERSION=2.3.1 %s\n", os.Args[0])
}
