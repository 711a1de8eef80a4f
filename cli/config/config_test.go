package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path == "" {
		t.Error("DefaultConfigPath() returned empty string")
	}

	if filepath.Base(path) != "config.yaml" {
		t.Errorf("DefaultConfigPath() = %q, should end with config.yaml", path)
	}

	dir := filepath.Dir(path)
	if filepath.Base(dir) != ".dify" {
		t.Errorf("DefaultConfigPath() = %q, should be in .dify directory", path)
	}
}

func TestDefaultConfigPathPlatform(t *testing.T) {
	path := DefaultConfigPath()

	if runtime.GOOS == "windows" {
		userProfile := os.Getenv("USERPROFILE")
		if userProfile != "" && !strings.HasPrefix(path, userProfile) {
			t.Logf("Note: path %q doesn't start with USERPROFILE %q", path, userProfile)
		}
	} else {
		home := os.Getenv("HOME")
		if home != "" && !strings.HasPrefix(path, home) {
			t.Logf("Note: path %q doesn't start with HOME %q", path, home)
		}
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("LoadConfig() error = %v, want nil for missing file", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfig() returned nil config")
	}
	if cfg.BaseURL != "" {
		t.Errorf("BaseURL = %q, want empty", cfg.BaseURL)
	}
	if cfg.Retry != nil || cfg.CircuitBreaker != nil {
		t.Error("resilience sections should be nil for missing file")
	}
}

func TestLoadConfigValid(t *testing.T) {
	content := `
base_url: https://dify.example.com/v1
api_key_env: MY_DIFY_KEY
user: alice
timeout: 45s
log_file: /tmp/dify.log

retry:
  max_retries: 5
  base_delay: 500ms
  max_delay: 10s
  retry_post: true
circuit_breaker:
  failure_threshold: 3
  open_duration: 1m
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.BaseURL != "https://dify.example.com/v1" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.APIKeyEnv != "MY_DIFY_KEY" {
		t.Errorf("APIKeyEnv = %q, want MY_DIFY_KEY", cfg.APIKeyEnv)
	}
	if cfg.User != "alice" {
		t.Errorf("User = %q, want alice", cfg.User)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v, want 45s", cfg.Timeout)
	}
	if cfg.LogFile != "/tmp/dify.log" {
		t.Errorf("LogFile = %q", cfg.LogFile)
	}

	if cfg.Retry == nil {
		t.Fatal("Retry is nil")
	}
	if cfg.Retry.MaxRetries != 5 || cfg.Retry.BaseDelay != 500*time.Millisecond || cfg.Retry.MaxDelay != 10*time.Second {
		t.Errorf("Retry = %+v", *cfg.Retry)
	}
	if !cfg.Retry.RetryPOST {
		t.Error("Retry.RetryPOST = false, want true")
	}

	if cfg.CircuitBreaker == nil {
		t.Fatal("CircuitBreaker is nil")
	}
	if cfg.CircuitBreaker.FailureThreshold != 3 || cfg.CircuitBreaker.OpenDuration != time.Minute {
		t.Errorf("CircuitBreaker = %+v", *cfg.CircuitBreaker)
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	content := `
base_url: [invalid, array, instead, of, string]
`
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Error("LoadConfig() should return error for invalid YAML")
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte("timeout: soon\n"), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Error("LoadConfig() should reject an unparsable duration")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfig() returned nil config for empty file")
	}
}

func TestConfigAPIKeyVar(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"nil config", nil, DefaultAPIKeyEnv},
		{"unset", &Config{}, DefaultAPIKeyEnv},
		{"custom", &Config{APIKeyEnv: "TEAM_DIFY_KEY"}, "TEAM_DIFY_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.APIKeyVar(); got != tt.want {
				t.Errorf("APIKeyVar() = %q, want %q", got, tt.want)
			}
		})
	}
}
