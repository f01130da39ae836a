// Package config loads and validates the callscore.yaml file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "90s" or "2m"
// decode directly.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or \"2m\"")
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// BackendConfig selects and parameterizes the evaluation backend.
// Params are passed through to the backend factory untouched.
type BackendConfig struct {
	Kind   string         `yaml:"kind"`
	Params map[string]any `yaml:"params"`
}

// RunConfig tunes the orchestrator.
type RunConfig struct {
	Workers     int      `yaml:"workers"`
	TaskTimeout Duration `yaml:"task_timeout"`
	MaxRetries  int      `yaml:"max_retries"`
	RetryBase   Duration `yaml:"retry_base"`
}

// CheckpointConfig selects where run checkpoints are persisted.
type CheckpointConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

// Config is the full callscore configuration.
type Config struct {
	Backend    BackendConfig    `yaml:"backend"`
	Run        RunConfig        `yaml:"run"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
}

// Default returns the configuration used when no file is present: the
// mock backend and an in-memory checkpoint store, which work with no
// credentials.
func Default() *Config {
	return &Config{
		Backend: BackendConfig{Kind: "mock"},
		Run: RunConfig{
			Workers:     0,
			TaskTimeout: Duration(2 * time.Minute),
			MaxRetries:  2,
			RetryBase:   Duration(500 * time.Millisecond),
		},
		Checkpoint: CheckpointConfig{Kind: "memory"},
	}
}

// Load reads a config file, fills in defaults for omitted fields, and
// validates the result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Backend.Kind == "" {
		cfg.Backend.Kind = def.Backend.Kind
	}
	if cfg.Run.TaskTimeout == 0 {
		cfg.Run.TaskTimeout = def.Run.TaskTimeout
	}
	if cfg.Run.MaxRetries == 0 {
		cfg.Run.MaxRetries = def.Run.MaxRetries
	}
	if cfg.Run.RetryBase == 0 {
		cfg.Run.RetryBase = def.Run.RetryBase
	}
	if cfg.Checkpoint.Kind == "" {
		cfg.Checkpoint.Kind = def.Checkpoint.Kind
	}
}

// Validate checks the loaded configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Backend.Kind {
	case "openai", "copilot", "mock":
	default:
		return fmt.Errorf("unknown backend kind %q", c.Backend.Kind)
	}

	if c.Run.Workers < 0 {
		return fmt.Errorf("run.workers must not be negative")
	}
	if c.Run.MaxRetries < 0 {
		return fmt.Errorf("run.max_retries must not be negative")
	}
	if c.Run.TaskTimeout < 0 {
		return fmt.Errorf("run.task_timeout must not be negative")
	}

	switch c.Checkpoint.Kind {
	case "memory":
	case "file", "sqlite":
		if c.Checkpoint.Path == "" {
			return fmt.Errorf("checkpoint.path is required for the %s store", c.Checkpoint.Kind)
		}
	default:
		return fmt.Errorf("unknown checkpoint kind %q", c.Checkpoint.Kind)
	}

	return nil
}
