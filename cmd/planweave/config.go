package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/planweave/planweave/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify planweave configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/planweave/config.yaml
Project-specific overrides can be placed in .planweave.yaml`,
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
	fmt.Printf("anthropic.api_key: %s (%s)\n",
		config.MaskAPIKey(cfg.Anthropic.APIKey), config.GetAPIKeySource(cfg))
	fmt.Printf("anthropic.model: %s\n", cfg.Anthropic.Model)
	fmt.Printf("anthropic.max_tokens: %d\n", cfg.Anthropic.MaxTokens)
	fmt.Printf("anthropic.use_bedrock: %t\n", cfg.Anthropic.UseBedrock)
	fmt.Printf("planner.mode: %s\n", cfg.Planner.Mode)
	fmt.Printf("planner.max_attempts: %d\n", cfg.Planner.MaxAttempts)
	fmt.Printf("planner.retry_policy: %s\n", cfg.Planner.RetryPolicy)
	fmt.Printf("budgets.orchestrator: %d\n", cfg.Budgets.Orchestrator)
	fmt.Printf("budgets.worker: %d\n", cfg.Budgets.Worker)
	fmt.Printf("storage.db_path: %s\n", cfg.Storage.DBPath)
	fmt.Printf("storage.retention_days: %d\n", cfg.Storage.RetentionDays)
	fmt.Printf("workers.profiles_path: %s\n", cfg.Workers.ProfilesPath)
	fmt.Printf("workers.manifest_path: %s\n", cfg.Workers.ManifestPath)
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

func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch key {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.max_tokens":
		return strconv.Itoa(cfg.Anthropic.MaxTokens), nil
	case "anthropic.use_bedrock":
		return strconv.FormatBool(cfg.Anthropic.UseBedrock), nil
	case "planner.mode":
		return cfg.Planner.Mode, nil
	case "planner.max_attempts":
		return strconv.Itoa(cfg.Planner.MaxAttempts), nil
	case "planner.retry_policy":
		return cfg.Planner.RetryPolicy, nil
	case "budgets.orchestrator":
		return strconv.Itoa(cfg.Budgets.Orchestrator), nil
	case "budgets.worker":
		return strconv.Itoa(cfg.Budgets.Worker), nil
	case "storage.db_path":
		return cfg.Storage.DBPath, nil
	case "storage.retention_days":
		return strconv.Itoa(cfg.Storage.RetentionDays), nil
	case "workers.profiles_path":
		return cfg.Workers.ProfilesPath, nil
	case "workers.manifest_path":
		return cfg.Workers.ManifestPath, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("max_tokens must be an integer: %s", value)
		}
		cfg.Anthropic.MaxTokens = n
	case "anthropic.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("use_bedrock must be a boolean: %s", value)
		}
		cfg.Anthropic.UseBedrock = b
	case "planner.mode":
		probe := cfg.Planner
		probe.Mode = value
		if _, err := probe.ParseMode(); err != nil {
			return err
		}
		cfg.Planner.Mode = value
	case "planner.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("max_attempts must be a positive integer: %s", value)
		}
		cfg.Planner.MaxAttempts = n
	case "planner.retry_policy":
		if value != "same-worker" && value != "replace" {
			return fmt.Errorf("retry_policy must be same-worker or replace: %s", value)
		}
		cfg.Planner.RetryPolicy = value
	case "budgets.orchestrator":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("orchestrator budget must be a positive integer: %s", value)
		}
		cfg.Budgets.Orchestrator = n
	case "budgets.worker":
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return fmt.Errorf("worker budget must be a positive integer: %s", value)
		}
		cfg.Budgets.Worker = n
	case "storage.db_path":
		cfg.Storage.DBPath = value
	case "storage.retention_days":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("retention_days must be a non-negative integer: %s", value)
		}
		cfg.Storage.RetentionDays = n
	case "workers.profiles_path":
		cfg.Workers.ProfilesPath = value
	case "workers.manifest_path":
		cfg.Workers.ManifestPath = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
