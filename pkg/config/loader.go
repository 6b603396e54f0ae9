package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "adaa.yaml"

// ADAAYAMLConfig represents the complete adaa.yaml file structure.
// Every section is optional; unset fields keep their built-in defaults.
type ADAAYAMLConfig struct {
	Server    *ServerConfig    `yaml:"server"`
	Log       *LogConfig       `yaml:"log"`
	Analysis  *AnalysisConfig  `yaml:"analysis"`
	Queue     *QueueConfig     `yaml:"queue"`
	Query     *QueryConfig     `yaml:"query"`
	Stream    *StreamConfig    `yaml:"stream"`
	Storage   *StorageConfig   `yaml:"storage"`
	Retention *RetentionConfig `yaml:"retention"`
	Auth      *AuthConfig      `yaml:"auth"`
	Slack     *SlackConfig     `yaml:"slack"`
	Telemetry *TelemetryConfig `yaml:"telemetry"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load adaa.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user sections over built-in defaults
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"storage_driver", stats.StorageDriver,
		"workers", stats.Workers,
		"llm_enabled", stats.LLMEnabled,
		"slack_enabled", stats.SlackEnabled,
		"tracing", stats.Tracing)

	return cfg, nil
}

// load is the internal loader (not exported)
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	user, err := loader.loadADAAYAML()
	if err != nil {
		return nil, NewLoadError(FileName, err)
	}

	cfg := Default()
	cfg.configDir = configDir

	// Start with defaults, then merge user sections on top so unset fields keep their defaults
	merges := []struct {
		name string
		dst  any
		src  any
		set  bool
	}{
		{"server", cfg.Server, user.Server, user.Server != nil},
		{"log", cfg.Log, user.Log, user.Log != nil},
		{"analysis", cfg.Analysis, user.Analysis, user.Analysis != nil},
		{"queue", cfg.Queue, user.Queue, user.Queue != nil},
		{"query", cfg.Query, user.Query, user.Query != nil},
		{"stream", cfg.Stream, user.Stream, user.Stream != nil},
		{"storage", cfg.Storage, user.Storage, user.Storage != nil},
		{"retention", cfg.Retention, user.Retention, user.Retention != nil},
		{"auth", cfg.Auth, user.Auth, user.Auth != nil},
		{"slack", cfg.Slack, user.Slack, user.Slack != nil},
		{"telemetry", cfg.Telemetry, user.Telemetry, user.Telemetry != nil},
	}
	for _, m := range merges {
		if !m.set {
			continue
		}
		if err := mergo.Merge(m.dst, m.src, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge %s config: %w", m.name, err)
		}
	}

	return cfg, nil
}

// validate performs comprehensive validation on loaded configuration
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadADAAYAML() (*ADAAYAMLConfig, error) {
	var config ADAAYAMLConfig
	if err := l.loadYAML(FileName, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
