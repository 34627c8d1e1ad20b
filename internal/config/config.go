// Package config handles configuration loading and management for switchboard.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/switchboard/internal/agent"
	"github.com/ShayCichocki/switchboard/internal/llm"
	"github.com/ShayCichocki/switchboard/internal/logging"
	"github.com/ShayCichocki/switchboard/internal/usage"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

const (
	appName           = "switchboard"
	projectConfigName = ".switchboard.yaml"
	envPrefix         = "SWITCHBOARD"
)

// Config holds all configuration for switchboard.
type Config struct {
	Anthropic AnthropicConfig         `mapstructure:"anthropic"`
	Execution ExecutionConfig         `mapstructure:"execution"`
	Budget    BudgetConfig            `mapstructure:"budget"`
	Pricing   []PriceConfig           `mapstructure:"pricing"`
	Workers   map[string]WorkerConfig `mapstructure:"workers"`
	Pipelines PipelinesConfig         `mapstructure:"pipelines"`
	Logging   LoggingConfig           `mapstructure:"logging"`
	Report    ReportConfig            `mapstructure:"report"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	Bedrock    bool   `mapstructure:"bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
}

// ExecutionConfig holds retry and timeout settings for remote calls.
type ExecutionConfig struct {
	MaxAttempts int            `mapstructure:"max_attempts"`
	Backoff     BackoffConfig  `mapstructure:"backoff"`
	Timeouts    TimeoutsConfig `mapstructure:"timeouts"`
	// WaitForCapacity queues tasks for a busy worker instead of degrading them.
	WaitForCapacity bool `mapstructure:"wait_for_capacity"`
	// ProbeConcurrency bounds the probe fan-out. Zero means one per worker.
	ProbeConcurrency int `mapstructure:"probe_concurrency"`
}

// BackoffConfig selects the delay between attempts.
type BackoffConfig struct {
	Kind       string        `mapstructure:"kind"`
	Initial    time.Duration `mapstructure:"initial"`
	Max        time.Duration `mapstructure:"max"`
	Multiplier float64       `mapstructure:"multiplier"`
}

// TimeoutsConfig holds timeout settings per tier.
type TimeoutsConfig struct {
	Executive   time.Duration `mapstructure:"executive"`
	Management  time.Duration `mapstructure:"management"`
	Operational time.Duration `mapstructure:"operational"`
}

// BudgetConfig bounds cumulative spend. A zero MaxCostUSD disables the budget.
type BudgetConfig struct {
	MaxCostUSD       float64 `mapstructure:"max_cost_usd"`
	WarningThreshold float64 `mapstructure:"warning_threshold"`
}

// PriceConfig is the price of one model in USD per million units.
// Prices are a list rather than a map because model names contain dots.
type PriceConfig struct {
	Model  string  `mapstructure:"model"`
	Input  float64 `mapstructure:"input"`
	Output float64 `mapstructure:"output"`
}

// WorkerConfig overrides catalogue metadata for one worker.
type WorkerConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// PipelinesConfig locates extra pipeline definitions.
type PipelinesConfig struct {
	// Dir holds *.yaml definitions merged over the built-in set.
	Dir string `mapstructure:"dir"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// ReportConfig holds export settings.
type ReportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, SWITCHBOARD_*)
// 2. Project config (.switchboard.yaml in current directory or parent)
// 3. User config (~/.config/switchboard/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading project config %s: %w", projectConfig, err)
		}
		if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("merging project config: %w", err)
		}
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", envPrefix+"_ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("binding api key env: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Pipelines.Dir = expandEnv(cfg.Pipelines.Dir)
	cfg.Report.OutputDir = expandEnv(cfg.Report.OutputDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Execution.MaxAttempts < 1 {
		return fmt.Errorf("execution.max_attempts must be at least 1, got %d", c.Execution.MaxAttempts)
	}
	if _, err := c.BackoffPolicy(); err != nil {
		return fmt.Errorf("execution.backoff: %w", err)
	}
	if c.Budget.MaxCostUSD < 0 {
		return fmt.Errorf("budget.max_cost_usd must not be negative")
	}
	if c.Budget.WarningThreshold < 0 || c.Budget.WarningThreshold > 1 {
		return fmt.Errorf("budget.warning_threshold must be in [0,1], got %v", c.Budget.WarningThreshold)
	}
	for i, p := range c.Pricing {
		if p.Model == "" {
			return fmt.Errorf("pricing[%d]: model is required", i)
		}
	}
	if err := c.Prices().Validate(); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	for id, w := range c.Workers {
		if w.Capacity < 0 {
			return fmt.Errorf("workers.%s.capacity must not be negative", id)
		}
	}
	return nil
}

// BackoffPolicy builds the configured backoff.
func (c *Config) BackoffPolicy() (agent.Backoff, error) {
	b := c.Execution.Backoff
	return agent.NewBackoff(b.Kind, b.Initial, b.Max, b.Multiplier)
}

// ExecutionPolicy converts the execution section into wrapper settings.
func (c *Config) ExecutionPolicy() (agent.Config, error) {
	backoff, err := c.BackoffPolicy()
	if err != nil {
		return agent.Config{}, err
	}
	t := c.Execution.Timeouts
	return agent.Config{
		MaxAttempts: c.Execution.MaxAttempts,
		Backoff:     backoff,
		Timeouts: agent.Timeouts{
			models.TierExecutive:   t.Executive,
			models.TierManagement:  t.Management,
			models.TierOperational: t.Operational,
		},
	}, nil
}

// Prices returns the built-in price table with configured overrides applied.
func (c *Config) Prices() usage.PriceTable {
	overrides := make(usage.PriceTable, len(c.Pricing))
	for _, p := range c.Pricing {
		overrides[p.Model] = usage.NewPrice(p.Input, p.Output)
	}
	return usage.DefaultPrices().Merge(overrides)
}

// CapacityOverrides returns the non-zero capacity overrides by worker id.
func (c *Config) CapacityOverrides() map[string]int {
	out := make(map[string]int)
	for id, w := range c.Workers {
		if w.Capacity > 0 {
			out[id] = w.Capacity
		}
	}
	return out
}

// LLM returns the backend settings with the resolved API key.
func (c *Config) LLM() llm.Config {
	key, _ := GetAPIKey(c)
	return llm.Config{
		Model:      c.Anthropic.Model,
		APIKey:     key,
		UseBedrock: c.Anthropic.Bedrock,
		AWSRegion:  c.Anthropic.AWSRegion,
		AWSProfile: c.Anthropic.AWSProfile,
		MaxTokens:  c.Anthropic.MaxTokens,
	}
}

// Log returns the logger settings.
func (c *Config) Log() logging.Config {
	l := c.Logging
	return logging.Config{
		Level:      l.Level,
		Format:     l.Format,
		Output:     l.Output,
		File:       l.File,
		MaxSize:    l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAgeDays,
	}
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	return SaveTo(GetUserConfigPath(), cfg)
}

// SaveTo writes the configuration to path.
func SaveTo(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.bedrock", cfg.Anthropic.Bedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("execution.max_attempts", cfg.Execution.MaxAttempts)
	v.Set("execution.wait_for_capacity", cfg.Execution.WaitForCapacity)
	v.Set("execution.probe_concurrency", cfg.Execution.ProbeConcurrency)
	v.Set("execution.backoff.kind", cfg.Execution.Backoff.Kind)
	v.Set("execution.backoff.initial", cfg.Execution.Backoff.Initial.String())
	v.Set("execution.backoff.max", cfg.Execution.Backoff.Max.String())
	v.Set("execution.backoff.multiplier", cfg.Execution.Backoff.Multiplier)
	v.Set("execution.timeouts.executive", cfg.Execution.Timeouts.Executive.String())
	v.Set("execution.timeouts.management", cfg.Execution.Timeouts.Management.String())
	v.Set("execution.timeouts.operational", cfg.Execution.Timeouts.Operational.String())
	v.Set("budget.max_cost_usd", cfg.Budget.MaxCostUSD)
	v.Set("budget.warning_threshold", cfg.Budget.WarningThreshold)
	pricing := make([]map[string]any, 0, len(cfg.Pricing))
	for _, p := range cfg.Pricing {
		pricing = append(pricing, map[string]any{"model": p.Model, "input": p.Input, "output": p.Output})
	}
	v.Set("pricing", pricing)
	for id, w := range cfg.Workers {
		v.Set("workers."+id+".capacity", w.Capacity)
	}
	v.Set("pipelines.dir", cfg.Pipelines.Dir)
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.format", cfg.Logging.Format)
	v.Set("logging.output", cfg.Logging.Output)
	v.Set("logging.file", cfg.Logging.File)
	v.Set("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.Set("logging.max_backups", cfg.Logging.MaxBackups)
	v.Set("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.Set("report.output_dir", cfg.Report.OutputDir)

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
	d := Default()

	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)

	v.SetDefault("execution.max_attempts", d.Execution.MaxAttempts)
	v.SetDefault("execution.wait_for_capacity", d.Execution.WaitForCapacity)
	v.SetDefault("execution.probe_concurrency", 0)
	v.SetDefault("execution.backoff.kind", d.Execution.Backoff.Kind)
	v.SetDefault("execution.backoff.initial", d.Execution.Backoff.Initial.String())
	v.SetDefault("execution.backoff.max", d.Execution.Backoff.Max.String())
	v.SetDefault("execution.backoff.multiplier", d.Execution.Backoff.Multiplier)
	v.SetDefault("execution.timeouts.executive", d.Execution.Timeouts.Executive.String())
	v.SetDefault("execution.timeouts.management", d.Execution.Timeouts.Management.String())
	v.SetDefault("execution.timeouts.operational", d.Execution.Timeouts.Operational.String())

	v.SetDefault("budget.max_cost_usd", 0.0)
	v.SetDefault("budget.warning_threshold", d.Budget.WarningThreshold)

	v.SetDefault("pipelines.dir", "")

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.max_size_mb", d.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", d.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", d.Logging.MaxAgeDays)

	v.SetDefault("report.output_dir", d.Report.OutputDir)
}

// getUserConfigDir returns the XDG config directory for switchboard.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// getDataDir returns the XDG data directory for switchboard.
func getDataDir() string {
	if dataDir := os.Getenv("XDG_DATA_HOME"); dataDir != "" {
		return filepath.Join(dataDir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".local", "share", appName)
	}
	return filepath.Join(home, ".local", "share", appName)
}

// findProjectConfig searches for .switchboard.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		configPath := filepath.Join(cwd, projectConfigName)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			return ""
		}
		cwd = parent
	}
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	backoff := agent.DefaultBackoff()
	timeouts := agent.DefaultTimeouts()
	log := logging.DefaultConfig()
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: llm.DefaultMaxTokens,
		},
		Execution: ExecutionConfig{
			MaxAttempts: agent.DefaultMaxAttempts,
			Backoff: BackoffConfig{
				Kind:       string(backoff.Kind),
				Initial:    backoff.Initial,
				Max:        backoff.Max,
				Multiplier: backoff.Multiplier,
			},
			Timeouts: TimeoutsConfig{
				Executive:   timeouts[models.TierExecutive],
				Management:  timeouts[models.TierManagement],
				Operational: timeouts[models.TierOperational],
			},
			WaitForCapacity: true,
		},
		Budget: BudgetConfig{
			WarningThreshold: 0.8,
		},
		Logging: LoggingConfig{
			Level:      log.Level,
			Format:     log.Format,
			Output:     log.Output,
			MaxSizeMB:  log.MaxSize,
			MaxBackups: log.MaxBackups,
			MaxAgeDays: log.MaxAge,
		},
		Report: ReportConfig{
			OutputDir: filepath.Join(getDataDir(), "reports"),
		},
	}
}
