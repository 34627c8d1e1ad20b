package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		dir    string
		format string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the last exported usage report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" {
				dir = a.cfg.Report.OutputDir
			}
			sum, err := report.LoadJSON(filepath.Join(dir, report.JSONFileName))
			if err != nil {
				return fmt.Errorf("no report in %s (run a pipeline first): %w", dir, err)
			}
			out := cmd.OutOrStdout()
			switch format {
			case "table":
				return report.Render(out, sum)
			case "json":
				return report.WriteJSON(out, sum)
			case "csv":
				return report.WriteCSV(out, sum.ByModel)
			default:
				return fmt.Errorf("unknown format %q (want table, json or csv)", format)
			}
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Report directory (default: report.output_dir)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, json, csv")
	return cmd
}
