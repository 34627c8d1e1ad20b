package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/fatih/color"

	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
)

func newTable(headers []string, numeric map[int]bool) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case numeric[col]:
				return numberStyle
			default:
				return cellStyle
			}
		})
}

// UsageTable renders the billing rows.
func UsageTable(rows []models.UsageRow) string {
	t := newTable([]string{"Tier", "Model", "Input", "Output", "Requests", "Cost"},
		map[int]bool{2: true, 3: true, 4: true, 5: true})
	for _, r := range rows {
		t.Row(string(r.Tier), r.Model,
			strconv.FormatInt(r.InputUnits, 10),
			strconv.FormatInt(r.OutputUnits, 10),
			strconv.FormatInt(r.RequestCount, 10),
			"$"+r.Cost.StringFixed(4))
	}
	return t.String()
}

// WorkerTable renders per-worker usage joined with capacity and latency.
func WorkerTable(s Summary) string {
	t := newTable([]string{"Worker", "Tier", "Load", "Success", "Requests", "p50", "p99", "Cost"},
		map[int]bool{2: true, 3: true, 4: true, 5: true, 6: true, 7: true})
	for _, d := range s.Capacity.Workers {
		rec := s.PerWorker[d.WorkerID]
		lat := s.Latency[d.WorkerID]
		t.Row(d.WorkerID, string(d.Tier),
			fmt.Sprintf("%d/%d", d.CurrentLoad, d.Capacity),
			fmt.Sprintf("%.0f%%", d.HistoricalSuccessRate*100),
			strconv.FormatInt(rec.RequestCount, 10),
			formatLatency(lat.P50, lat.Count),
			formatLatency(lat.P99, lat.Count),
			"$"+rec.Cost.StringFixed(4))
	}
	return t.String()
}

// RunTable renders pipeline runs.
func RunTable(runs []models.PipelineRun) string {
	t := newTable([]string{"Run", "Pipeline", "Status", "Stages", "Success", "Value"},
		map[int]bool{3: true, 4: true, 5: true})
	for _, r := range runs {
		t.Row(shortID(r.ID), r.Name, statusText(r.Status),
			fmt.Sprintf("%d/%d", len(r.Stages), r.PlannedStages),
			fmt.Sprintf("%.0f%%", r.SuccessRate*100),
			valueText(r.BusinessValue))
	}
	return t.String()
}

// Render writes the full terminal report.
func Render(w io.Writer, s Summary) error {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Usage by model"))
	b.WriteString("\n")
	b.WriteString(UsageTable(s.ByModel))
	b.WriteString("\n\n")
	b.WriteString(titleStyle.Render("Workers"))
	b.WriteString("\n")
	b.WriteString(WorkerTable(s))
	b.WriteString("\n")
	if len(s.PipelineRuns) > 0 {
		b.WriteString("\n")
		b.WriteString(titleStyle.Render("Pipeline runs"))
		b.WriteString("\n")
		b.WriteString(RunTable(s.PipelineRuns))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "\nTotal: %s over %d units, utilization %.0f%%, budget %s\n",
		color.New(color.Bold).Sprint("$"+s.TotalCost.StringFixed(4)),
		s.TotalUnits, s.Capacity.Utilization*100, budgetText(s.Budget))
	_, err := io.WriteString(w, b.String())
	return err
}

func statusText(st models.RunStatus) string {
	switch st {
	case models.RunCompleted:
		return color.GreenString(string(st))
	case models.RunHalted:
		return color.YellowString(string(st))
	default:
		return color.RedString(string(st))
	}
}

func valueText(v models.BusinessValue) string {
	if !v.Realized {
		return color.HiBlackString(models.NoValueRealized)
	}
	text := "$" + v.Amount.StringFixed(2)
	if v.Degraded {
		return color.YellowString(text + "*")
	}
	return text
}

func budgetText(b BudgetSummary) string {
	switch b.Status {
	case orchestrator.BudgetExhausted.String():
		return color.RedString(b.Status)
	case orchestrator.BudgetWarning.String():
		return color.YellowString(b.Status)
	default:
		return color.GreenString(b.Status)
	}
}

func formatLatency(d time.Duration, count int64) string {
	if count == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
