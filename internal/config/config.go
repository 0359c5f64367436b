// Package config loads the hub configuration: defaults, then the yaml file,
// then SIMHUB_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all simhub configuration.
type Config struct {
	// DataDir is where the sqlite database and logs live.
	DataDir string `yaml:"data_dir"`

	UI      UIConfig      `yaml:"ui"`
	Cloud   CloudConfig   `yaml:"cloud"`
	Logging LoggingConfig `yaml:"logging"`
}

// UIConfig tunes the shell.
type UIConfig struct {
	// TransitionMs bounds the exit animation between modules.
	TransitionMs int `yaml:"transition_ms"`
	// InsightPulseSec is the ambient insight timer period.
	InsightPulseSec int `yaml:"insight_pulse_sec"`
	// InsightPulseChance is the per-tick probability of surfacing a pulse.
	InsightPulseChance float64 `yaml:"insight_pulse_chance"`
}

// CloudConfig points at the external sync collaborator.
type CloudConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // empty = DataDir/simhub.log
}

// Default returns the configuration used when no file exists.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir: filepath.Join(home, ".simhub"),
		UI: UIConfig{
			TransitionMs:       150,
			InsightPulseSec:    8,
			InsightPulseChance: 0.06,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".simhub", "config.yaml")
}

// Load reads the yaml file at path over the defaults and applies environment
// overrides. A missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the configuration back as yaml, creating parent directories.
func (c Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// DBPath returns the sqlite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "simhub.db")
}

// LogPath returns the log file location.
func (c Config) LogPath() string {
	if c.Logging.File != "" {
		return c.Logging.File
	}
	return filepath.Join(c.DataDir, "simhub.log")
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SIMHUB_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("SIMHUB_CLOUD_ENDPOINT"); v != "" {
		cfg.Cloud.Endpoint = v
	}
	if v := os.Getenv("SIMHUB_CLOUD_API_KEY"); v != "" {
		cfg.Cloud.APIKey = v
	}
	if v := os.Getenv("SIMHUB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIMHUB_TRANSITION_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.UI.TransitionMs = ms
		}
	}
}
