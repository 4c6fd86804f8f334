// Package config handles configuration loading and management for planweave.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/planweave/planweave/internal/mode"
)

// Config holds all configuration for planweave.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Planner   PlannerConfig   `mapstructure:"planner"`
	Budgets   BudgetsConfig   `mapstructure:"budgets"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Workers   WorkersConfig   `mapstructure:"workers"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// PlannerConfig controls when planning operations are exposed and how
// failed subtasks are retried.
type PlannerConfig struct {
	// Mode is one of disable, dynamic, enforced.
	Mode string `mapstructure:"mode"`
	// MaxAttempts is how many times a subtask is retried before the
	// roadmap is revised instead.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryPolicy is same-worker or replace.
	RetryPolicy string `mapstructure:"retry_policy"`
}

// ParseMode validates and returns the configured planner mode.
func (pc PlannerConfig) ParseMode() (mode.Mode, error) {
	return mode.Parse(pc.Mode)
}

// BudgetsConfig holds iteration budgets for the reasoning loops.
type BudgetsConfig struct {
	// Orchestrator caps reasoning iterations in the control loop.
	Orchestrator int `mapstructure:"orchestrator"`
	// Worker caps reasoning iterations per worker execution.
	Worker int `mapstructure:"worker"`
}

// StorageConfig holds snapshot persistence settings.
type StorageConfig struct {
	// DBPath overrides the default .planweave/state.db location.
	DBPath string `mapstructure:"db_path"`
	// RetentionDays is how long snapshots are kept before purge.
	RetentionDays int `mapstructure:"retention_days"`
}

// WorkersConfig holds worker profile and capability manifest paths.
type WorkersConfig struct {
	// ProfilesPath is a YAML file of builtin worker profiles.
	ProfilesPath string `mapstructure:"profiles_path"`
	// ManifestPath is a YAML file of extra capability definitions.
	ManifestPath string `mapstructure:"manifest_path"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.planweave.yaml in current directory or parent)
// 3. User config (~/.config/planweave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.use_bedrock", "PLANWEAVE_USE_BEDROCK")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	if err := validate(cfg); err != nil {
		return nil, err
	}

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

	if err := validate(cfg); err != nil {
		return nil, err
	}

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
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("planner.mode", cfg.Planner.Mode)
	v.Set("planner.max_attempts", cfg.Planner.MaxAttempts)
	v.Set("planner.retry_policy", cfg.Planner.RetryPolicy)
	v.Set("budgets.orchestrator", cfg.Budgets.Orchestrator)
	v.Set("budgets.worker", cfg.Budgets.Worker)
	v.Set("storage.db_path", cfg.Storage.DBPath)
	v.Set("storage.retention_days", cfg.Storage.RetentionDays)
	v.Set("workers.profiles_path", cfg.Workers.ProfilesPath)
	v.Set("workers.manifest_path", cfg.Workers.ManifestPath)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")

	v.SetDefault("planner.mode", "dynamic")
	v.SetDefault("planner.max_attempts", 3)
	v.SetDefault("planner.retry_policy", "same-worker")

	v.SetDefault("budgets.orchestrator", 50)
	v.SetDefault("budgets.worker", 20)

	v.SetDefault("storage.db_path", "")
	v.SetDefault("storage.retention_days", 30)

	v.SetDefault("workers.profiles_path", "")
	v.SetDefault("workers.manifest_path", "")
}

// validate rejects values that would misconfigure the control loop.
func validate(cfg *Config) error {
	if _, err := mode.Parse(cfg.Planner.Mode); err != nil {
		return fmt.Errorf("planner.mode: %w", err)
	}
	switch cfg.Planner.RetryPolicy {
	case "same-worker", "replace":
	default:
		return fmt.Errorf("planner.retry_policy must be same-worker or replace, got %q", cfg.Planner.RetryPolicy)
	}
	if cfg.Planner.MaxAttempts < 1 {
		return fmt.Errorf("planner.max_attempts must be at least 1, got %d", cfg.Planner.MaxAttempts)
	}
	if cfg.Budgets.Orchestrator < 1 {
		return fmt.Errorf("budgets.orchestrator must be at least 1, got %d", cfg.Budgets.Orchestrator)
	}
	if cfg.Budgets.Worker < 1 {
		return fmt.Errorf("budgets.worker must be at least 1, got %d", cfg.Budgets.Worker)
	}
	return nil
}

// getUserConfigDir returns the XDG config directory for planweave.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "planweave")
	}

	// Fall back to ~/.config/planweave
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "planweave")
	}
	return filepath.Join(home, ".config", "planweave")
}

// findProjectConfig searches for .planweave.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".planweave.yaml")
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
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-5",
			MaxTokens: 8192,
		},
		Planner: PlannerConfig{
			Mode:        "dynamic",
			MaxAttempts: 3,
			RetryPolicy: "same-worker",
		},
		Budgets: BudgetsConfig{
			Orchestrator: 50,
			Worker:       20,
		},
		Storage: StorageConfig{
			RetentionDays: 30,
		},
	}
}
