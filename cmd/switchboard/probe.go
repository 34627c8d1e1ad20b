package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/report"
	"github.com/ShayCichocki/switchboard/internal/workers"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

func newProbeCmd(a *app) *cobra.Command {
	var (
		payloadArg string
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Send one sample task to every worker concurrently",
		Long: `Probe dispatches a sample task to each worker in the catalogue at once
and prints how each one answered, followed by the usage summary.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := workers.SamplePayload()
			if payloadArg != "" {
				var err error
				if payload, err = parsePayload(payloadArg); err != nil {
					return err
				}
			}
			return a.withOrchestrator(cmd, func(o *orchestrator.Orchestrator) error {
				results, err := o.Probe(cmd.Context(), payload)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					return writeJSON(out, results)
				}
				usable := 0
				for _, r := range results {
					detail := r.Result.Reason
					if r.Result.Status == models.StatusFailure {
						detail = string(r.Result.ErrorKind)
					}
					if r.Result.Usable() {
						usable++
					}
					fmt.Fprintf(out, "%-30s %-22s %-10s %s\n", r.WorkerID, r.Decision.TaskType, statusColor(r.Result.Status), detail)
				}
				fmt.Fprintf(out, "%d/%d workers usable\n\n", usable, len(results))
				return report.Render(out, report.Build(o, time.Now()))
			})
		},
	}
	cmd.Flags().StringVar(&payloadArg, "payload", "", "Probe payload as JSON or @file (default: sample lead)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}
