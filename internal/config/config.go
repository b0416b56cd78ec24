package config

import (
	"encoding/json"
	"fmt"
)

// Config represents the main plughost configuration
type Config struct {
	// Plugins
	Plugins PluginsConfig `json:"plugins" mapstructure:"plugins"`

	// Capability aggregation
	Capabilities CapabilitiesConfig `json:"capabilities" mapstructure:"capabilities"`

	// Startup policy
	Startup StartupConfig `json:"startup" mapstructure:"startup"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Shell messenger server
	Shell ShellConfig `json:"shell" mapstructure:"shell"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// PluginsConfig holds plugin discovery configuration
type PluginsConfig struct {
	Dir           string `json:"dir" mapstructure:"dir"`
	Prefix        string `json:"prefix" mapstructure:"prefix"`
	EntryManifest string `json:"entry_manifest" mapstructure:"entry_manifest"`
	Loader        string `json:"loader" mapstructure:"loader"` // catalog, process, chain
}

// CapabilitiesConfig holds capability index configuration
type CapabilitiesConfig struct {
	ConflictPolicy string `json:"conflict_policy" mapstructure:"conflict_policy"` // warn, reject
}

// StartupConfig holds host startup policy
type StartupConfig struct {
	ContinueOnActivationFailure bool `json:"continue_on_activation_failure" mapstructure:"continue_on_activation_failure"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// ShellConfig holds the websocket shell server configuration
type ShellConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Host    string `json:"host" mapstructure:"host"`
	Port    int    `json:"port" mapstructure:"port"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Path    string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Plugins: PluginsConfig{
			Prefix:        "beaker-plugin-",
			EntryManifest: "plugins.yaml",
			Loader:        "chain",
		},
		Capabilities: CapabilitiesConfig{
			ConflictPolicy: "warn",
		},
		Startup: StartupConfig{
			ContinueOnActivationFailure: false,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
		Shell: ShellConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    9870,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		DataDir: "",
	}
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	v := NewValidator()

	if err := v.ValidatePrefix(c.Plugins.Prefix); err != nil {
		return fmt.Errorf("plugins: %w", err)
	}
	if err := v.ValidateLoaderMode(c.Plugins.Loader); err != nil {
		return fmt.Errorf("plugins: %w", err)
	}
	if err := v.ValidateEntryManifest(c.Plugins.EntryManifest); err != nil {
		return fmt.Errorf("plugins: %w", err)
	}
	if err := v.ValidateConflictPolicy(c.Capabilities.ConflictPolicy); err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}
	if err := v.ValidateLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	if c.Shell.Enabled {
		if err := v.ValidatePort(c.Shell.Port); err != nil {
			return fmt.Errorf("shell: %w", err)
		}
	}

	if c.Metrics.Enabled && c.Metrics.Path == "" {
		return fmt.Errorf("metrics: path is required when metrics are enabled")
	}

	return nil
}
