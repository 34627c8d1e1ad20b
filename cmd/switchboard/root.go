package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/logging"
)

// newRootCmd assembles the command tree. Each call returns a fresh tree so
// tests can run commands in isolation.
func newRootCmd() *cobra.Command {
	a := &app{logger: zap.NewNop()}
	var logLevel string

	root := &cobra.Command{
		Use:   "switchboard",
		Short: "Tiered task router and business pipeline runner",
		Long: `Switchboard routes business tasks to a catalogue of tiered workers
(executive, management, operational), runs multi-stage pipelines such as
enterprise_sales, and tracks token usage and cost per tier.

Workers call the Anthropic API when credentials are configured and fall back
to local heuristics otherwise.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(a.cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.Logging.Level = logLevel
			}
			logger, err := logging.New(cfg.Log())
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgPath, "config", "", "Config file (default: user and project config)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.offline, "offline", false, "Never call the remote API; use local fallbacks")

	root.AddCommand(
		newRouteCmd(a),
		newRunCmd(a),
		newProbeCmd(a),
		newReportCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
