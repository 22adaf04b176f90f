package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/unravel/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify unravel configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/unravel/config.yaml
Project-specific overrides can be placed in .unravel.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.use_aws_bedrock: %t\n", cfg.Anthropic.UseAWSBedrock)
	fmt.Printf("engine.max_depth: %d\n", cfg.Engine.MaxDepth)
	fmt.Printf("engine.oracle_timeout: %s\n", cfg.Engine.OracleTimeout)
	fmt.Printf("engine.workflow_timeout: %s\n", cfg.Engine.WorkflowTimeout)
	fmt.Printf("engine.parallel: %t\n", cfg.Engine.Parallel)
	fmt.Printf("engine.max_workers: %d\n", cfg.Engine.MaxWorkers)
	fmt.Printf("loop.window: %d\n", cfg.Loop.Window)
	fmt.Printf("loop.repeat_threshold: %d\n", cfg.Loop.RepeatThreshold)
	fmt.Printf("loop.rapid_rise: %d\n", cfg.Loop.RapidRise)
	fmt.Printf("loop.rapid_window: %d\n", cfg.Loop.RapidWindow)
	fmt.Printf("strategies.priority: %s\n", strings.Join(cfg.Strategies.Priority, ", "))
	fmt.Printf("archive.enabled: %t\n", cfg.Archive.Enabled)
	fmt.Printf("archive.path: %s\n", cfg.Archive.Path)
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.use_aws_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseAWSBedrock), nil
	case "engine.max_depth":
		return strconv.Itoa(cfg.Engine.MaxDepth), nil
	case "engine.oracle_timeout":
		return cfg.Engine.OracleTimeout.String(), nil
	case "engine.workflow_timeout":
		return cfg.Engine.WorkflowTimeout.String(), nil
	case "engine.parallel":
		return strconv.FormatBool(cfg.Engine.Parallel), nil
	case "engine.max_workers":
		return strconv.Itoa(cfg.Engine.MaxWorkers), nil
	case "loop.window":
		return strconv.Itoa(cfg.Loop.Window), nil
	case "loop.repeat_threshold":
		return strconv.Itoa(cfg.Loop.RepeatThreshold), nil
	case "loop.rapid_rise":
		return strconv.Itoa(cfg.Loop.RapidRise), nil
	case "loop.rapid_window":
		return strconv.Itoa(cfg.Loop.RapidWindow), nil
	case "strategies.priority":
		return strings.Join(cfg.Strategies.Priority, ", "), nil
	case "archive.enabled":
		return strconv.FormatBool(cfg.Archive.Enabled), nil
	case "archive.path":
		return cfg.Archive.Path, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.use_aws_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for use_aws_bedrock: %w", err)
		}
		cfg.Anthropic.UseAWSBedrock = b
	case "engine.max_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_depth: %w", err)
		}
		cfg.Engine.MaxDepth = n
	case "engine.oracle_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for oracle_timeout: %w", err)
		}
		cfg.Engine.OracleTimeout = d
	case "engine.workflow_timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for workflow_timeout: %w", err)
		}
		cfg.Engine.WorkflowTimeout = d
	case "engine.parallel":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for parallel: %w", err)
		}
		cfg.Engine.Parallel = b
	case "engine.max_workers":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_workers: %w", err)
		}
		cfg.Engine.MaxWorkers = n
	case "loop.window":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for loop.window: %w", err)
		}
		cfg.Loop.Window = n
	case "loop.repeat_threshold":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for loop.repeat_threshold: %w", err)
		}
		cfg.Loop.RepeatThreshold = n
	case "loop.rapid_rise":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for loop.rapid_rise: %w", err)
		}
		cfg.Loop.RapidRise = n
	case "loop.rapid_window":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for loop.rapid_window: %w", err)
		}
		cfg.Loop.RapidWindow = n
	case "archive.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for archive.enabled: %w", err)
		}
		cfg.Archive.Enabled = b
	case "archive.path":
		cfg.Archive.Path = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
