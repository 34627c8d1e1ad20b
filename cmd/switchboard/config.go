package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Manage configuration",
		Long: `View or modify Switchboard configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/switchboard/config.yaml
Project-specific overrides can be placed in .switchboard.yaml`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch len(args) {
			case 0:
				displayAllConfig(out, a.cfg)
				return nil
			case 1:
				value, err := getConfigValue(a.cfg, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, value)
				return nil
			default:
				return setConfigKey(out, a.cfg, args[0], args[1])
			}
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file locations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user:    %s\n", config.GetUserConfigPath())
			project := config.GetProjectConfigPath()
			if project == "" {
				project = "(none)"
			}
			fmt.Fprintf(out, "project: %s\n", project)
		},
	})
	return cmd
}

var configKeys = []string{
	"anthropic.api_key",
	"anthropic.model",
	"anthropic.bedrock",
	"execution.max_attempts",
	"execution.backoff.kind",
	"execution.backoff.initial",
	"execution.wait_for_capacity",
	"execution.probe_concurrency",
	"budget.max_cost_usd",
	"budget.warning_threshold",
	"pipelines.dir",
	"logging.level",
	"logging.format",
	"logging.output",
	"report.output_dir",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(w io.Writer, cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Fprintf(w, "%s: %s\n", key, value)
	}
	fmt.Fprintf(w, "credentials: %s\n", config.GetAPIKeySource(cfg))
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		k, _ := config.GetAPIKey(cfg)
		return config.MaskAPIKey(k), nil
	case "anthropic.model":
		return cfg.Anthropic.Model, nil
	case "anthropic.bedrock":
		return strconv.FormatBool(cfg.Anthropic.Bedrock), nil
	case "execution.max_attempts":
		return strconv.Itoa(cfg.Execution.MaxAttempts), nil
	case "execution.backoff.kind":
		return cfg.Execution.Backoff.Kind, nil
	case "execution.backoff.initial":
		return cfg.Execution.Backoff.Initial.String(), nil
	case "execution.wait_for_capacity":
		return strconv.FormatBool(cfg.Execution.WaitForCapacity), nil
	case "execution.probe_concurrency":
		return strconv.Itoa(cfg.Execution.ProbeConcurrency), nil
	case "budget.max_cost_usd":
		return strconv.FormatFloat(cfg.Budget.MaxCostUSD, 'f', -1, 64), nil
	case "budget.warning_threshold":
		return strconv.FormatFloat(cfg.Budget.WarningThreshold, 'f', -1, 64), nil
	case "pipelines.dir":
		return cfg.Pipelines.Dir, nil
	case "logging.level":
		return cfg.Logging.Level, nil
	case "logging.format":
		return cfg.Logging.Format, nil
	case "logging.output":
		return cfg.Logging.Output, nil
	case "report.output_dir":
		return cfg.Report.OutputDir, nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigKey sets a configuration value and saves the user config.
func setConfigKey(w io.Writer, cfg *config.Config, key, value string) error {
	if err := setConfigValue(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// Keys taken from the environment are never written to disk.
	if config.GetAPIKeySource(cfg) == config.KeySourceEnv {
		cfg.Anthropic.APIKey = ""
	}
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	fmt.Fprintf(w, "Set %s = %s\n", key, value)
	return nil
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		if err := config.ValidateAPIKey(value); err != nil {
			return err
		}
		cfg.Anthropic.APIKey = value
	case "anthropic.model":
		cfg.Anthropic.Model = value
	case "anthropic.bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		cfg.Anthropic.Bedrock = b
	case "execution.max_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		cfg.Execution.MaxAttempts = n
	case "execution.backoff.kind":
		cfg.Execution.Backoff.Kind = value
	case "execution.backoff.initial":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration value: %s", value)
		}
		cfg.Execution.Backoff.Initial = d
	case "execution.wait_for_capacity":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean value: %s", value)
		}
		cfg.Execution.WaitForCapacity = b
	case "execution.probe_concurrency":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		cfg.Execution.ProbeConcurrency = n
	case "budget.max_cost_usd", "budget.warning_threshold":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number value: %s", value)
		}
		if strings.HasSuffix(strings.ToLower(key), "max_cost_usd") {
			cfg.Budget.MaxCostUSD = f
		} else {
			cfg.Budget.WarningThreshold = f
		}
	case "pipelines.dir":
		cfg.Pipelines.Dir = value
	case "logging.level":
		cfg.Logging.Level = value
	case "logging.format":
		cfg.Logging.Format = value
	case "logging.output":
		cfg.Logging.Output = value
	case "report.output_dir":
		cfg.Report.OutputDir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}
