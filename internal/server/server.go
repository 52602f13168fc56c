package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leslieo2/go-health-probe/internal/config"
	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/leslieo2/go-health-probe/internal/contract"
	"github.com/leslieo2/go-health-probe/internal/health"
	"github.com/leslieo2/go-health-probe/internal/observability"
	"github.com/leslieo2/go-health-probe/internal/security"
)

// Deps are the collaborators of a Server. Only Reporter is required.
type Deps struct {
	Reporter    *health.Reporter
	Logger      *observability.Logger
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
	RateLimiter *security.RateLimiter
	Contract    *contract.Contract
}

type Server struct {
	config *config.Config
	server *http.Server

	reporter    *health.Reporter
	rateLimiter *security.RateLimiter
	contract    *contract.Contract

	// Observability
	logger  *observability.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer

	// Reload source
	configFile string
	cliFlags   *config.CLIFlags
	reloadMu   sync.Mutex
}

func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if deps.Reporter == nil {
		return nil, errors.New("health reporter is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}

	tracer := deps.Tracer
	if tracer == nil {
		var err error
		tracer, err = observability.NewTracer(config.TracingConfig{}, cfg.App)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
	}

	rateLimiter := deps.RateLimiter
	if rateLimiter == nil && cfg.Security.RateLimit.Enabled {
		rateLimiter = security.NewRateLimiter(cfg.Security.RateLimit)
	}

	return &Server{
		config:      cfg,
		reporter:    deps.Reporter,
		rateLimiter: rateLimiter,
		contract:    deps.Contract,
		logger:      logger,
		metrics:     deps.Metrics,
		tracer:      tracer,
	}, nil
}

// SetConfigSource records where the configuration came from so Reload can
// rebuild it with the same precedence.
func (s *Server) SetConfigSource(configFile string, cliFlags *config.CLIFlags) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()
	s.configFile = configFile
	s.cliFlags = cliFlags
}

// Start serves until SIGINT or SIGTERM, then shuts down gracefully
func (s *Server) Start() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return s.Run(ctx)
}

// Run listens on the configured address and serves until ctx is done
func (s *Server) Run(ctx context.Context) error {
	addr := s.config.GetServerAddress()
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return s.Serve(ctx, listener)
}

// Serve serves the probe on listener until ctx is done or serving fails.
// The optional metrics server is started and stopped alongside it.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.server = &http.Server{
		Handler:        s.buildHandler(),
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    s.config.Server.IdleTimeout,
		MaxHeaderBytes: constants.ServerMaxHeaderBytes,
	}

	s.logger.Info("Starting server",
		zap.String("address", listener.Addr().String()),
		zap.String("path", constants.PathHealth),
		zap.String("environment", s.reporter.Metadata().Environment),
		zap.String("version", s.reporter.Metadata().Version),
	)

	if s.metrics != nil {
		s.metrics.SetHealthStatus(true)
	}

	errCh := make(chan error, 2)

	var metricsServer *http.Server
	if s.metrics != nil && s.config.Observability.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(s.config.Observability.Metrics.Path, s.metrics.Handler())
		metricsServer = &http.Server{
			Addr:              s.config.GetMetricsAddress(),
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		s.logger.Info("Starting metrics server",
			zap.String("address", metricsServer.Addr),
			zap.String("path", s.config.Observability.Metrics.Path),
		)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server...")
	case serveErr = <-errCh:
		s.logger.Error("Server failed", zap.Error(serveErr))
	}

	if s.metrics != nil {
		s.metrics.SetHealthStatus(false)
	}

	return errors.Join(serveErr, s.shutdown(metricsServer))
}

// shutdown stops both servers in parallel within the configured timeout
func (s *Server) shutdown(metricsServer *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	var wg sync.WaitGroup
	errChan := make(chan error, 2)

	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Shutdown(ctx); err != nil {
				s.logger.Error("Failed to shutdown metrics server", zap.Error(err))
				errChan <- fmt.Errorf("metrics server shutdown: %w", err)
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.server.Shutdown(ctx); err != nil {
			s.logger.Error("Failed to shutdown main server", zap.Error(err))
			errChan <- fmt.Errorf("main server shutdown: %w", err)
		}
	}()

	wg.Wait()
	close(errChan)

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reload re-reads the configuration file and applies the report metadata.
// Listener, check and security settings take effect on restart only.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.configFile == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg, err := config.LoadConfig(s.configFile, s.cliFlags)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	previous := s.reporter.Metadata()
	next := health.Metadata{
		Environment: cfg.App.Environment,
		Version:     cfg.App.Version,
	}
	s.reporter.SetMetadata(next)

	s.logger.Info("Configuration reloaded",
		zap.String("file", s.configFile),
		zap.String("environment", next.Environment),
		zap.String("version", next.Version),
		zap.Bool("changed", previous != next),
	)
	return nil
}

// Name identifies the server to the hot reload coordinator
func (s *Server) Name() string {
	return "health-server"
}
