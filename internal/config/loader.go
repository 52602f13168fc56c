package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leslieo2/go-health-probe/internal/constants"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration with precedence:
// 1. Explicitly set CLI flags (highest priority)
// 2. Environment variables
// 3. Configuration file values
// 4. Default configuration values (lowest priority)
func LoadConfig(configFile string, cliFlags *CLIFlags) (*Config, error) {
	config := DefaultConfig()

	if configFile != "" {
		if err := loadFromFile(configFile, config); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(config)

	if cliFlags != nil {
		overrideWithCLI(config, cliFlags)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// CLIFlags contains CLI flag values that can override configuration.
// Only flags marked as changed on FlagSet take effect.
type CLIFlags struct {
	FlagSet *pflag.FlagSet

	Environment      *string
	Version          *string
	Host             *string
	Port             *string
	MetricsPort      *string
	ShutdownTimeout  *time.Duration
	LogLevel         *string
	LogFormat        *string
	MetricsEnabled   *bool
	TracingEnabled   *bool
	RateLimitEnabled *bool
	HotReload        *bool
	CheckTimeout     *time.Duration
	CPUInterval      *time.Duration
	DiskPath         *string
	FilesystemDir    *string
	DatabaseURL      *string
	RedisAddr        *string
}

// RegisterFlags defines every configuration flag on fs and returns the bound values
func RegisterFlags(fs *pflag.FlagSet) *CLIFlags {
	defaults := DefaultConfig()

	return &CLIFlags{
		FlagSet:          fs,
		Environment:      fs.String("environment", defaults.App.Environment, "Environment name reported by the probe"),
		Version:          fs.String("app-version", defaults.App.Version, "Application version reported by the probe"),
		Host:             fs.String("host", defaults.Server.Host, "Host to bind the probe server on"),
		Port:             fs.String("port", defaults.Server.Port, "Port to run the probe server on"),
		MetricsPort:      fs.String("metrics-port", defaults.Server.MetricsPort, "Port to run the metrics server on"),
		ShutdownTimeout:  fs.Duration("shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout"),
		LogLevel:         fs.String("log-level", defaults.Observability.Logging.Level, "Log level: debug, info, warn, error"),
		LogFormat:        fs.String("log-format", defaults.Observability.Logging.Format, "Log format: json, console"),
		MetricsEnabled:   fs.Bool("metrics-enabled", defaults.Observability.Metrics.Enabled, "Serve Prometheus metrics on the metrics port"),
		TracingEnabled:   fs.Bool("tracing-enabled", defaults.Observability.Tracing.Enabled, "Export trace spans to stdout"),
		RateLimitEnabled: fs.Bool("rate-limit-enabled", defaults.Security.RateLimit.Enabled, "Enable per-IP rate limiting of the probe route"),
		HotReload:        fs.Bool("hot-reload", defaults.HotReload.Enabled, "Reload the configuration file when it changes"),
		CheckTimeout:     fs.Duration("check-timeout", defaults.Checks.Timeout, "Timeout applied to each dependency check"),
		CPUInterval:      fs.Duration("cpu-interval", defaults.Checks.CPUInterval, "CPU sampling window"),
		DiskPath:         fs.String("disk-path", defaults.Checks.DiskPath, "Filesystem path whose disk usage is reported"),
		FilesystemDir:    fs.String("fs-dir", defaults.Checks.Filesystem.Dir, "Directory used by the filesystem write probe"),
		DatabaseURL:      fs.String("database-url", defaults.Checks.Database.URL, "PostgreSQL URL probed by the database check"),
		RedisAddr:        fs.String("redis-addr", defaults.Checks.Redis.Addr, "Redis address probed by the cache check"),
	}
}

func (f *CLIFlags) changed(name string) bool {
	if f.FlagSet != nil {
		return f.FlagSet.Changed(name)
	}
	flag := pflag.Lookup(name)
	return flag != nil && flag.Changed
}

// loadFromFile decodes a YAML or JSON file on top of config
func loadFromFile(filePath string, config *Config) error {
	if !filepath.IsAbs(filePath) {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return fmt.Errorf("failed to get absolute path for %s: %w", filePath, err)
		}
		filePath = absPath
	}

	if err := validateFilePath(filePath); err != nil {
		return fmt.Errorf("invalid config file path %s: %w", filePath, err)
	}

	data, err := os.ReadFile(filePath) // #nosec G304 - file path validated by validateFilePath()
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	// JSON is decoded with the YAML decoder as well, so durations such as
	// "2s" are accepted in both formats.
	ext := filepath.Ext(filePath)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml", ".json":
		err = yaml.Unmarshal(data, config)
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	if val := os.Getenv(constants.EnvEnvironment); val != "" {
		config.App.Environment = val
	}
	if val := os.Getenv(constants.EnvVersion); val != "" {
		config.App.Version = val
	}

	if val := os.Getenv(constants.EnvHost); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv(constants.EnvPort); val != "" {
		config.Server.Port = val
	}
	if val := os.Getenv(constants.EnvMetricsPort); val != "" {
		config.Server.MetricsPort = val
	}
	envDuration(constants.EnvReadTimeout, &config.Server.ReadTimeout)
	envDuration(constants.EnvWriteTimeout, &config.Server.WriteTimeout)
	envDuration(constants.EnvIdleTimeout, &config.Server.IdleTimeout)
	envDuration(constants.EnvShutdownTimeout, &config.Server.ShutdownTimeout)

	if val := os.Getenv(constants.EnvLogLevel); val != "" {
		config.Observability.Logging.Level = val
	}
	if val := os.Getenv(constants.EnvLogFormat); val != "" {
		config.Observability.Logging.Format = val
	}
	envBool(constants.EnvMetricsEnabled, &config.Observability.Metrics.Enabled)
	envBool(constants.EnvTracingEnabled, &config.Observability.Tracing.Enabled)

	envDuration(constants.EnvCheckTimeout, &config.Checks.Timeout)
	envDuration(constants.EnvCPUInterval, &config.Checks.CPUInterval)
	if val := os.Getenv(constants.EnvDiskPath); val != "" {
		config.Checks.DiskPath = val
	}
	if val := os.Getenv(constants.EnvFilesystemDir); val != "" {
		config.Checks.Filesystem.Dir = val
	}
	if val := os.Getenv(constants.EnvDatabaseURL); val != "" {
		config.Checks.Database.URL = val
	}
	if val := os.Getenv(constants.EnvRedisAddr); val != "" {
		config.Checks.Redis.Addr = val
	}
	if val := os.Getenv(constants.EnvRedisPassword); val != "" {
		config.Checks.Redis.Password = val
	}

	envBool(constants.EnvRateLimit, &config.Security.RateLimit.Enabled)
	envBool(constants.EnvHotReload, &config.HotReload.Enabled)
}

// envDuration overwrites dst when key holds a parseable duration
func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			*dst = duration
		}
	}
}

// envBool overwrites dst when key holds a parseable boolean
func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if enabled, err := strconv.ParseBool(val); err == nil {
			*dst = enabled
		}
	}
}

// overrideWithCLI overrides configuration with CLI flag values.
// Only explicitly set CLI flags override other configuration sources.
func overrideWithCLI(config *Config, flags *CLIFlags) {
	if flags.Environment != nil && flags.changed("environment") {
		config.App.Environment = *flags.Environment
	}
	if flags.Version != nil && flags.changed("app-version") {
		config.App.Version = *flags.Version
	}

	if flags.Host != nil && flags.changed("host") {
		config.Server.Host = *flags.Host
	}
	if flags.Port != nil && flags.changed("port") {
		config.Server.Port = *flags.Port
	}
	if flags.MetricsPort != nil && flags.changed("metrics-port") {
		config.Server.MetricsPort = *flags.MetricsPort
	}
	if flags.ShutdownTimeout != nil && flags.changed("shutdown-timeout") {
		config.Server.ShutdownTimeout = *flags.ShutdownTimeout
	}

	if flags.LogLevel != nil && flags.changed("log-level") {
		config.Observability.Logging.Level = *flags.LogLevel
	}
	if flags.LogFormat != nil && flags.changed("log-format") {
		config.Observability.Logging.Format = *flags.LogFormat
	}
	if flags.MetricsEnabled != nil && flags.changed("metrics-enabled") {
		config.Observability.Metrics.Enabled = *flags.MetricsEnabled
	}
	if flags.TracingEnabled != nil && flags.changed("tracing-enabled") {
		config.Observability.Tracing.Enabled = *flags.TracingEnabled
	}

	if flags.RateLimitEnabled != nil && flags.changed("rate-limit-enabled") {
		config.Security.RateLimit.Enabled = *flags.RateLimitEnabled
	}
	if flags.HotReload != nil && flags.changed("hot-reload") {
		config.HotReload.Enabled = *flags.HotReload
	}

	if flags.CheckTimeout != nil && flags.changed("check-timeout") {
		config.Checks.Timeout = *flags.CheckTimeout
	}
	if flags.CPUInterval != nil && flags.changed("cpu-interval") {
		config.Checks.CPUInterval = *flags.CPUInterval
	}
	if flags.DiskPath != nil && flags.changed("disk-path") {
		config.Checks.DiskPath = *flags.DiskPath
	}
	if flags.FilesystemDir != nil && flags.changed("fs-dir") {
		config.Checks.Filesystem.Dir = *flags.FilesystemDir
	}
	if flags.DatabaseURL != nil && flags.changed("database-url") {
		config.Checks.Database.URL = *flags.DatabaseURL
	}
	if flags.RedisAddr != nil && flags.changed("redis-addr") {
		config.Checks.Redis.Addr = *flags.RedisAddr
	}
}

// validateFilePath checks if the file path is safe to read
func validateFilePath(filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	cleanPath := filepath.Clean(absPath)
	if strings.Contains(cleanPath, "..") {
		return fmt.Errorf("path contains directory traversal attempts")
	}

	return nil
}
