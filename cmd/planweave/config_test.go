package main

import (
	"testing"

	"github.com/planweave/planweave/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"planner.mode", "enforced", false},
		{"planner.mode", "sometimes", true},
		{"planner.retry_policy", "replace", false},
		{"planner.retry_policy", "random", true},
		{"planner.max_attempts", "5", false},
		{"planner.max_attempts", "0", true},
		{"budgets.worker", "10", false},
		{"budgets.worker", "lots", true},
		{"anthropic.use_bedrock", "true", false},
		{"anthropic.use_bedrock", "maybe", true},
		{"storage.retention_days", "14", false},
		{"no.such.key", "x", true},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			cfg := config.Default()
			err := setConfigValue(cfg, tt.key, tt.value)
			if (err != nil) != tt.wantErr {
				t.Errorf("setConfigValue(%q, %q) error = %v, wantErr %v", tt.key, tt.value, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue(%q): %v", tt.key, err)
			}
			if got != tt.value {
				t.Errorf("round trip %q = %q, want %q", tt.key, got, tt.value)
			}
		})
	}
}

func TestGetConfigValueMasksAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Anthropic.APIKey = "sk-ant-REDACTED"
	got, err := getConfigValue(cfg, "anthropic.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if got == cfg.Anthropic.APIKey {
		t.Error("api key displayed unmasked")
	}
}

func TestOverrideMode(t *testing.T) {
	cfg := config.Default()
	if err := overrideMode(cfg, ""); err != nil {
		t.Errorf("empty override rejected: %v", err)
	}
	if cfg.Planner.Mode != "dynamic" {
		t.Errorf("empty override changed mode to %q", cfg.Planner.Mode)
	}
	if err := overrideMode(cfg, "enforced"); err != nil {
		t.Errorf("valid override rejected: %v", err)
	}
	if cfg.Planner.Mode != "enforced" {
		t.Errorf("mode = %q, want enforced", cfg.Planner.Mode)
	}
	if err := overrideMode(cfg, "bogus"); err == nil {
		t.Error("invalid override accepted")
	}
}
