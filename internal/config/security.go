package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `json:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig contains rate limiting configuration for the probe route
type RateLimitConfig struct {
	Enabled         bool          `json:"enabled" yaml:"enabled"`
	Strategy        string        `json:"strategy" yaml:"strategy"`
	ByIP            *RateLimit    `json:"by_ip" yaml:"by_ip"`
	CleanupInterval time.Duration `json:"cleanup_interval" yaml:"cleanup_interval"`
	MaxCacheSize    int           `json:"max_cache_size" yaml:"max_cache_size"`
}

// RateLimit contains rate limit settings for a specific entity
type RateLimit struct {
	RequestsPerSecond int           `json:"requests_per_second" yaml:"requests_per_second"`
	BurstSize         int           `json:"burst_size" yaml:"burst_size"`
	WindowSize        time.Duration `json:"window_size" yaml:"window_size"`
}

// DefaultSecurityConfig returns default security configuration
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		RateLimit: DefaultRateLimitConfig(),
	}
}

// DefaultRateLimitConfig returns default rate limit configuration.
// Probes are expected from a handful of orchestrator addresses, so the
// limiter is off unless explicitly enabled.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:  false,
		Strategy: constants.RateLimitStrategyIP,
		ByIP: &RateLimit{
			RequestsPerSecond: 5,
			BurstSize:         10,
			WindowSize:        time.Minute,
		},
		CleanupInterval: constants.RateLimitCleanupInterval,
		MaxCacheSize:    constants.RateLimitMaxCacheSize,
	}
}

// Validate validates the security configuration
func (s *SecurityConfig) Validate() error {
	if err := s.RateLimit.Validate(); err != nil {
		return fmt.Errorf("rate limit config validation failed: %w", err)
	}
	return nil
}

// Validate validates the rate limit configuration
func (r *RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	var errs []error
	if r.Strategy != constants.RateLimitStrategyIP {
		errs = append(errs, errors.New("strategy must be: ip"))
	}
	if r.ByIP == nil {
		errs = append(errs, errors.New("by_ip must be set when rate limiting is enabled"))
	} else if err := r.ByIP.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("by_ip rate limit validation failed: %w", err))
	}
	if r.MaxCacheSize < 0 {
		errs = append(errs, errors.New("max_cache_size must be non-negative"))
	}

	return errors.Join(errs...)
}

// Validate validates the rate limit configuration for a specific entity
func (l *RateLimit) Validate() error {
	if l.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}
	if l.BurstSize <= 0 {
		return fmt.Errorf("burst_size must be positive")
	}
	if l.WindowSize <= 0 {
		return fmt.Errorf("window_size must be positive")
	}
	return nil
}
