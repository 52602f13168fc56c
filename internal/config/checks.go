package config

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// ChecksConfig contains the settings of the system sampler and each dependency probe
type ChecksConfig struct {
	Timeout     time.Duration    `json:"timeout" yaml:"timeout"`
	CPUInterval time.Duration    `json:"cpu_interval" yaml:"cpu_interval"`
	DiskPath    string           `json:"disk_path" yaml:"disk_path"`
	Database    DatabaseConfig   `json:"database" yaml:"database"`
	Redis       RedisConfig      `json:"redis" yaml:"redis"`
	Filesystem  FilesystemConfig `json:"filesystem" yaml:"filesystem"`
}

// DatabaseConfig configures the database probe. An empty URL keeps the probe
// in placeholder mode.
type DatabaseConfig struct {
	URL      string `json:"url" yaml:"url"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns"`
}

// RedisConfig configures the cache probe. An empty Addr keeps the probe
// in placeholder mode.
type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

// FilesystemConfig configures the write probe
type FilesystemConfig struct {
	Dir       string `json:"dir" yaml:"dir"`
	FixedPath bool   `json:"fixed_path" yaml:"fixed_path"`
}

// DefaultChecksConfig returns default check configuration
func DefaultChecksConfig() ChecksConfig {
	return ChecksConfig{
		Timeout:     2 * time.Second,
		CPUInterval: time.Second,
		DiskPath:    "/",
		Database: DatabaseConfig{
			MaxConns: 2,
		},
		Filesystem: FilesystemConfig{
			Dir: os.TempDir(),
		},
	}
}

// Validate validates the check configuration
func (c *ChecksConfig) Validate() error {
	var errs []error

	if c.Timeout <= 0 {
		errs = append(errs, errors.New("checks.timeout must be positive"))
	}
	if c.CPUInterval <= 0 {
		errs = append(errs, errors.New("checks.cpu_interval must be positive"))
	}
	if c.DiskPath == "" {
		errs = append(errs, errors.New("checks.disk_path cannot be empty"))
	}
	if c.Database.URL != "" && c.Database.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("checks.database.max_conns must be positive, got %d", c.Database.MaxConns))
	}
	if c.Redis.DB < 0 {
		errs = append(errs, errors.New("checks.redis.db must be non-negative"))
	}
	if c.Filesystem.Dir == "" {
		errs = append(errs, errors.New("checks.filesystem.dir cannot be empty"))
	}

	return errors.Join(errs...)
}
