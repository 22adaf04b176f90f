// Package config handles configuration loading and management for unravel.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for unravel.
type Config struct {
	Anthropic  AnthropicConfig  `mapstructure:"anthropic"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Loop       LoopConfig       `mapstructure:"loop"`
	Strategies StrategiesConfig `mapstructure:"strategies"`
	Archive    ArchiveConfig    `mapstructure:"archive"`
}

// AnthropicConfig holds oracle API settings.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key.
	APIKey string `mapstructure:"api_key"`
	// Model is the model name passed to the oracle client.
	Model string `mapstructure:"model"`
	// UseAWSBedrock routes oracle calls through AWS Bedrock.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the Bedrock region.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
}

// EngineConfig holds solver limits and toggles.
type EngineConfig struct {
	// MaxDepth is the recursion depth at which the engine short-circuits
	// to a base case.
	MaxDepth int `mapstructure:"max_depth"`
	// OracleTimeout bounds a single oracle invocation.
	OracleTimeout time.Duration `mapstructure:"oracle_timeout"`
	// WorkflowTimeout bounds one workflow execution end to end.
	WorkflowTimeout time.Duration `mapstructure:"workflow_timeout"`
	// Parallel enables concurrent execution of independent sub-problems.
	Parallel bool `mapstructure:"parallel"`
	// MaxWorkers bounds the worker pool used for parallel children.
	MaxWorkers int `mapstructure:"max_workers"`
}

// LoopConfig holds loop-detection thresholds.
type LoopConfig struct {
	// Window is how many trailing timeline events the cycle detector
	// inspects.
	Window int `mapstructure:"window"`
	// RepeatThreshold is the minimum number of repetitions of an
	// event-type+payload cycle that counts as a loop.
	RepeatThreshold int `mapstructure:"repeat_threshold"`
	// RapidRise is the depth increase within RapidWindow events that
	// triggers the rapid-descent heuristic.
	RapidRise int `mapstructure:"rapid_rise"`
	// RapidWindow is the event window for the rapid-descent heuristic.
	RapidWindow int `mapstructure:"rapid_window"`
}

// StrategiesConfig holds strategy selection settings.
type StrategiesConfig struct {
	// Priority is the order strategies are probed in.
	Priority []string `mapstructure:"priority"`
}

// ArchiveConfig holds timeline archive settings.
type ArchiveConfig struct {
	// Enabled turns on SQLite archival of session timelines.
	Enabled bool `mapstructure:"enabled"`
	// Path is the archive database path; empty means the default under
	// the user's data directory.
	Path string `mapstructure:"path"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables. Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.unravel.yaml in current directory or parent)
// 3. User config (~/.config/unravel/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	configPath := filepath.Join(userConfigDir, "config.yaml")

	v := viper.New()
	v.SetConfigFile(configPath)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.use_aws_bedrock", cfg.Anthropic.UseAWSBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("engine.max_depth", cfg.Engine.MaxDepth)
	v.Set("engine.oracle_timeout", cfg.Engine.OracleTimeout.String())
	v.Set("engine.workflow_timeout", cfg.Engine.WorkflowTimeout.String())
	v.Set("engine.parallel", cfg.Engine.Parallel)
	v.Set("engine.max_workers", cfg.Engine.MaxWorkers)
	v.Set("loop.window", cfg.Loop.Window)
	v.Set("loop.repeat_threshold", cfg.Loop.RepeatThreshold)
	v.Set("loop.rapid_rise", cfg.Loop.RapidRise)
	v.Set("loop.rapid_window", cfg.Loop.RapidWindow)
	v.Set("strategies.priority", cfg.Strategies.Priority)
	v.Set("archive.enabled", cfg.Archive.Enabled)
	v.Set("archive.path", cfg.Archive.Path)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("engine.max_depth", 10)
	v.SetDefault("engine.oracle_timeout", "60s")
	v.SetDefault("engine.workflow_timeout", "10m")
	v.SetDefault("engine.parallel", true)
	v.SetDefault("engine.max_workers", 4)

	v.SetDefault("loop.window", 10)
	v.SetDefault("loop.repeat_threshold", 2)
	v.SetDefault("loop.rapid_rise", 3)
	v.SetDefault("loop.rapid_window", 6)

	v.SetDefault("strategies.priority", []string{"recursive", "iterative", "parallel"})

	v.SetDefault("archive.enabled", true)
	v.SetDefault("archive.path", "")
}

// getUserConfigDir returns the XDG config directory for unravel.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "unravel")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "unravel")
	}
	return filepath.Join(home, ".config", "unravel")
}

// findProjectConfig searches for .unravel.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".unravel.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxDepth:        10,
			OracleTimeout:   60 * time.Second,
			WorkflowTimeout: 10 * time.Minute,
			Parallel:        true,
			MaxWorkers:      4,
		},
		Loop: LoopConfig{
			Window:          10,
			RepeatThreshold: 2,
			RapidRise:       3,
			RapidWindow:     6,
		},
		Strategies: StrategiesConfig{
			Priority: []string{"recursive", "iterative", "parallel"},
		},
		Archive: ArchiveConfig{
			Enabled: true,
		},
	}
}
