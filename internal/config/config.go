package config

// Config represents the unified configuration structure
type Config struct {
	App           AppConfig           `json:"app" yaml:"app"`
	Server        ServerConfig        `json:"server" yaml:"server"`
	Checks        ChecksConfig        `json:"checks" yaml:"checks"`
	Security      SecurityConfig      `json:"security" yaml:"security"`
	Observability ObservabilityConfig `json:"observability" yaml:"observability"`
	HotReload     HotReloadConfig     `json:"hot_reload" yaml:"hot_reload"`
}

// AppConfig carries the metadata echoed in every health report
type AppConfig struct {
	Environment string `json:"environment" yaml:"environment"`
	Version     string `json:"version" yaml:"version"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		App:           DefaultAppConfig(),
		Server:        DefaultServerConfig(),
		Checks:        DefaultChecksConfig(),
		Security:      DefaultSecurityConfig(),
		Observability: DefaultObservabilityConfig(),
		HotReload:     DefaultHotReloadConfig(),
	}
}
