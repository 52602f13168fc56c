package config

import (
	"errors"

	"github.com/leslieo2/go-health-probe/internal/constants"
)

// DefaultAppConfig returns the default report metadata
func DefaultAppConfig() AppConfig {
	return AppConfig{
		Environment: constants.DefaultEnvironment,
		Version:     constants.DefaultVersion,
	}
}

// Validate validates the app configuration
func (a AppConfig) Validate() error {
	var errs []error
	if a.Environment == "" {
		errs = append(errs, errors.New("app.environment cannot be empty"))
	}
	if a.Version == "" {
		errs = append(errs, errors.New("app.version cannot be empty"))
	}
	return errors.Join(errs...)
}
