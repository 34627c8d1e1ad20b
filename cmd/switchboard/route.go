package main

import (
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

func newRouteCmd(a *app) *cobra.Command {
	var (
		payloadArg string
		critical   bool
		dryRun     bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "route [task_type]",
		Short: "Route a single task and execute it",
		Long: `Route a task to the best available worker and execute it.

When no task type is given it is inferred from the payload. With --dry-run
only the routing decision is printed.

Examples:
  switchboard route lead_qualification --payload '{"company":"Acme","budget":50000}'
  switchboard route --payload @task.json --critical --dry-run`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := models.TaskDescriptor{
				ID:           "cli-" + uuid.NewString(),
				PriorityHint: models.PriorityNormal,
			}
			if len(args) == 1 {
				tt, err := models.ParseTaskType(args[0])
				if err != nil {
					return err
				}
				task.TaskType = tt
			}
			if critical {
				task.PriorityHint = models.PriorityCritical
			}
			payload, err := parsePayload(payloadArg)
			if err != nil {
				return err
			}
			task.Payload = payload

			return a.withOrchestrator(cmd, func(o *orchestrator.Orchestrator) error {
				if dryRun {
					decision := o.Route(task)
					if asJSON {
						return writeJSON(cmd.OutOrStdout(), decision)
					}
					printDecision(cmd.OutOrStdout(), decision)
					return nil
				}
				decision, res := o.Submit(cmd.Context(), task)
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), struct {
						Decision models.RoutingDecision `json:"decision"`
						Result   models.ExecutionResult `json:"result"`
					}{decision, res})
				}
				printDecision(cmd.OutOrStdout(), decision)
				printResult(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&payloadArg, "payload", "", "Task payload as JSON or @file")
	cmd.Flags().BoolVar(&critical, "critical", false, "Mark the task business-critical")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the routing decision without executing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print machine-readable JSON")
	return cmd
}

func printDecision(w io.Writer, d models.RoutingDecision) {
	taskType := string(d.TaskType)
	if d.Classified {
		taskType += " (inferred)"
	}
	fmt.Fprintf(w, "Task type:  %s\n", taskType)
	fmt.Fprintf(w, "Worker:     %s\n", d.TargetWorkerID)
	fmt.Fprintf(w, "Priority:   %d\n", d.PriorityScore)
	if !d.EstimatedCompletion.IsZero() {
		fmt.Fprintf(w, "Estimated:  %s\n", d.EstimatedCompletion.Format(time.RFC3339))
	}
}

func printResult(w io.Writer, r models.ExecutionResult) {
	fmt.Fprintf(w, "Status:     %s (attempts %d, %s)\n", statusColor(r.Status), r.Attempts, r.Duration.Round(time.Millisecond))
	switch r.Status {
	case models.StatusDegraded:
		fmt.Fprintf(w, "Reason:     %s\n", r.Reason)
	case models.StatusFailure:
		fmt.Fprintf(w, "Error:      %s: %s\n", r.ErrorKind, r.Message)
	}
	if len(r.Payload) > 0 {
		out, err := sonic.ConfigStd.MarshalIndent(r.Payload, "", "  ")
		if err == nil {
			fmt.Fprintf(w, "Payload:\n%s\n", out)
		}
	}
}

func statusColor(s models.ResultStatus) string {
	switch s {
	case models.StatusSuccess:
		return color.GreenString(string(s))
	case models.StatusDegraded:
		return color.YellowString(string(s))
	default:
		return color.RedString(string(s))
	}
}

func writeJSON(w io.Writer, v any) error {
	out, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", out)
	return err
}
