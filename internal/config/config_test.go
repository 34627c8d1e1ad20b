package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Execution.MaxAttempts != agent.DefaultMaxAttempts {
		t.Errorf("expected max attempts %d, got %d", agent.DefaultMaxAttempts, cfg.Execution.MaxAttempts)
	}
	if cfg.Execution.Backoff.Kind != "exponential" {
		t.Errorf("expected exponential backoff, got %q", cfg.Execution.Backoff.Kind)
	}
	if cfg.Execution.Timeouts.Executive != 90*time.Second {
		t.Errorf("expected executive timeout 90s, got %v", cfg.Execution.Timeouts.Executive)
	}
	if !cfg.Execution.WaitForCapacity {
		t.Error("expected wait_for_capacity to default to true")
	}
	if cfg.Budget.WarningThreshold != 0.8 {
		t.Errorf("expected warning threshold 0.8, got %v", cfg.Budget.WarningThreshold)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoadFromPath(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("SWITCHBOARD_ANTHROPIC_API_KEY", "")
	t.Setenv("TEST_SWITCHBOARD_KEY", "sk-ant-from-env-reference")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
anthropic:
  api_key: ${TEST_SWITCHBOARD_KEY}
  model: claude-3-5-haiku-20241022
  max_tokens: 1024
execution:
  max_attempts: 5
  wait_for_capacity: false
  backoff:
    kind: linear
    initial: 50ms
    max: 1s
  timeouts:
    executive: 2m
    operational: 10s
budget:
  max_cost_usd: 2.5
  warning_threshold: 0.5
pricing:
  - model: gpt-3.5-turbo
    input: 1
    output: 2
  - model: house-model
    input: 0.1
    output: 0.2
workers:
  seo_specialist:
    capacity: 12
pipelines:
  dir: /etc/switchboard/pipelines
logging:
  level: debug
  format: json
report:
  output_dir: /tmp/reports
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Anthropic.APIKey != "sk-ant-from-env-reference" {
		t.Errorf("api key = %q, want expanded reference", cfg.Anthropic.APIKey)
	}
	if cfg.Anthropic.MaxTokens != 1024 {
		t.Errorf("max tokens = %d", cfg.Anthropic.MaxTokens)
	}
	if cfg.Execution.MaxAttempts != 5 || cfg.Execution.WaitForCapacity {
		t.Errorf("execution = %+v", cfg.Execution)
	}
	if cfg.Execution.Timeouts.Management != 60*time.Second {
		t.Errorf("unset management timeout = %v, want default 60s", cfg.Execution.Timeouts.Management)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Output != "stderr" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	if cfg.Pipelines.Dir != "/etc/switchboard/pipelines" || cfg.Report.OutputDir != "/tmp/reports" {
		t.Errorf("paths = %q %q", cfg.Pipelines.Dir, cfg.Report.OutputDir)
	}

	exec, err := cfg.ExecutionPolicy()
	if err != nil {
		t.Fatalf("ExecutionPolicy() error = %v", err)
	}
	bo := exec.Backoff.NewBackOff()
	bo.NextBackOff()
	bo.NextBackOff()
	if got := bo.NextBackOff(); got != 150*time.Millisecond {
		t.Errorf("linear third delay = %v, want 150ms", got)
	}
	if exec.Timeouts[models.TierExecutive] != 2*time.Minute {
		t.Errorf("executive timeout = %v", exec.Timeouts[models.TierExecutive])
	}

	prices := cfg.Prices()
	if got := prices.Cost("gpt-3.5-turbo", 1_000_000, 1_000_000); !got.Equal(decimal.NewFromInt(3)) {
		t.Errorf("overridden gpt-3.5-turbo cost = %s, want 3", got)
	}
	if _, ok := prices["house-model"]; !ok {
		t.Error("added model missing from price table")
	}
	if _, ok := prices["gpt-4"]; !ok {
		t.Error("built-in model dropped by merge")
	}

	if got := cfg.CapacityOverrides(); got["seo_specialist"] != 12 || len(got) != 1 {
		t.Errorf("CapacityOverrides() = %v", got)
	}
	if l := cfg.LLM(); l.APIKey != "sk-ant-from-env-reference" || l.Model != "claude-3-5-haiku-20241022" {
		t.Errorf("LLM() = %+v", l)
	}
	if l := cfg.Log(); l.Format != "json" || l.MaxSize != 10 {
		t.Errorf("Log() = %+v", l)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SWITCHBOARD_EXECUTION_MAX_ATTEMPTS", "7")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-env")

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("execution:\n  max_attempts: 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.Execution.MaxAttempts != 7 {
		t.Errorf("max attempts = %d, want env override 7", cfg.Execution.MaxAttempts)
	}
	if cfg.Anthropic.APIKey != "sk-ant-env" {
		t.Errorf("api key = %q, want env value", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero attempts", "execution:\n  max_attempts: 0\n"},
		{"bad backoff", "execution:\n  backoff:\n    kind: random\n"},
		{"negative budget", "budget:\n  max_cost_usd: -1\n"},
		{"threshold above one", "budget:\n  warning_threshold: 1.5\n"},
		{"negative price", "pricing:\n  - model: gpt-4\n    input: -1\n    output: 1\n"},
		{"unnamed price", "pricing:\n  - input: 1\n    output: 1\n"},
		{"negative capacity", "workers:\n  seo_specialist:\n    capacity: -2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFromPath(path); err == nil {
				t.Error("LoadFromPath() error = nil, want validation error")
			}
		})
	}
}

func TestLoadMergesProjectConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	userDir := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "switchboard")
	if err := os.MkdirAll(userDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte("execution:\n  max_attempts: 4\nbudget:\n  max_cost_usd: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}

	project := t.TempDir()
	nested := filepath.Join(project, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(project, projectConfigName), []byte("budget:\n  max_cost_usd: 9\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Chdir(nested)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Execution.MaxAttempts != 4 {
		t.Errorf("max attempts = %d, want user value 4", cfg.Execution.MaxAttempts)
	}
	if cfg.Budget.MaxCostUSD != 9 {
		t.Errorf("max cost = %v, want project override 9", cfg.Budget.MaxCostUSD)
	}
	if got := GetProjectConfigPath(); filepath.Base(got) != projectConfigName {
		t.Errorf("GetProjectConfigPath() = %q", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Budget.MaxCostUSD = 12.5
	cfg.Pricing = []PriceConfig{{Model: "house-model", Input: 1, Output: 2}}
	cfg.Workers = map[string]WorkerConfig{"content_creator": {Capacity: 9}}

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo() error = %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if loaded.Budget.MaxCostUSD != 12.5 {
		t.Errorf("max cost = %v", loaded.Budget.MaxCostUSD)
	}
	if len(loaded.Pricing) != 1 || loaded.Pricing[0].Model != "house-model" {
		t.Errorf("pricing = %+v", loaded.Pricing)
	}
	if loaded.Workers["content_creator"].Capacity != 9 {
		t.Errorf("workers = %+v", loaded.Workers)
	}
	if loaded.Execution.Backoff.Initial != cfg.Execution.Backoff.Initial {
		t.Errorf("backoff initial = %v, want %v", loaded.Execution.Backoff.Initial, cfg.Execution.Backoff.Initial)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "test-value")
	if got := expandEnv("${TEST_VAR}"); got != "test-value" {
		t.Errorf("expected 'test-value', got %q", got)
	}
	if got := expandEnv("plain-value"); got != "plain-value" {
		t.Errorf("expected 'plain-value', got %q", got)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	if got := getUserConfigDir(); got != "/custom/config/switchboard" {
		t.Errorf("expected '/custom/config/switchboard', got %q", got)
	}
}
