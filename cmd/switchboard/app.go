package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ShayCichocki/switchboard/internal/config"
	"github.com/ShayCichocki/switchboard/internal/llm"
	"github.com/ShayCichocki/switchboard/internal/orchestrator"
	"github.com/ShayCichocki/switchboard/internal/pipeline"
	"github.com/ShayCichocki/switchboard/internal/report"
	"github.com/ShayCichocki/switchboard/internal/workers"
	"github.com/ShayCichocki/switchboard/pkg/models"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgPath string
	offline bool
	cfg     *config.Config
	logger  *zap.Logger
}

// backend picks the remote completion backend. Without credentials the
// catalogue runs on its fallbacks.
func (a *app) backend(ctx context.Context) (llm.Completer, error) {
	if a.offline {
		return llm.Offline{}, nil
	}
	if !config.HasCredentials(a.cfg) {
		a.logger.Warn("no Anthropic credentials configured, running offline")
		return llm.Offline{}, nil
	}
	client, err := llm.NewClient(ctx, a.cfg.LLM())
	if err != nil {
		return nil, fmt.Errorf("create API client: %w", err)
	}
	return client, nil
}

// orchestrator builds the catalogue orchestrator from configuration.
func (a *app) orchestrator(ctx context.Context) (*orchestrator.Orchestrator, error) {
	backend, err := a.backend(ctx)
	if err != nil {
		return nil, err
	}
	exec, err := a.cfg.ExecutionPolicy()
	if err != nil {
		return nil, err
	}

	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithExecution(exec),
		orchestrator.WithPrices(a.cfg.Prices()),
		orchestrator.WithCapacityOverrides(a.cfg.CapacityOverrides()),
		orchestrator.WithWaitForCapacity(a.cfg.Execution.WaitForCapacity),
		orchestrator.WithProbeConcurrency(a.cfg.Execution.ProbeConcurrency),
	}
	if a.cfg.Budget.MaxCostUSD > 0 {
		opts = append(opts, orchestrator.WithCostBudget(
			decimal.NewFromFloat(a.cfg.Budget.MaxCostUSD), a.cfg.Budget.WarningThreshold))
	}
	if dir := a.cfg.Pipelines.Dir; dir != "" {
		defs, err := pipeline.LoadDir(dir)
		if err != nil {
			return nil, err
		}
		opts = append(opts, orchestrator.WithPipelines(defs))
	}

	return orchestrator.New(workers.Catalogue(backend), opts...)
}

// logEvents forwards orchestrator events to the logger until the channel
// closes. The returned channel is closed when forwarding is done.
func (a *app) logEvents(o *orchestrator.Orchestrator) <-chan struct{} {
	done := make(chan struct{})
	logger := a.logger.Named("events")
	go func() {
		defer close(done)
		for e := range o.Events() {
			fields := []zap.Field{
				zap.String("type", string(e.Type)),
				zap.String("task", e.TaskID),
				zap.String("worker", e.WorkerID),
			}
			if e.RunID != "" {
				fields = append(fields, zap.String("run", e.RunID), zap.String("stage", e.Stage))
			}
			if e.Error != nil {
				fields = append(fields, zap.Error(e.Error))
			}
			switch e.Type {
			case orchestrator.EventBudgetWarning, orchestrator.EventBudgetExhausted:
				logger.Warn(e.Message, append(fields, zap.String("cost", e.Cost.String()))...)
			case orchestrator.EventAttemptFailed, orchestrator.EventStageFailed:
				logger.Info(e.Message, fields...)
			default:
				logger.Debug(e.Message, fields...)
			}
		}
	}()
	return done
}

// export writes the JSON, CSV and SQLite reports into dir.
func (a *app) export(dir string, sum report.Summary) error {
	if err := report.SaveJSON(filepath.Join(dir, report.JSONFileName), sum); err != nil {
		return err
	}
	if err := report.SaveCSV(filepath.Join(dir, report.CSVFileName), sum.ByModel); err != nil {
		return err
	}
	store, err := report.OpenStore(filepath.Join(dir, report.SQLiteFileName))
	if err != nil {
		return err
	}
	defer store.Close()
	id, err := store.Save(sum)
	if err != nil {
		return err
	}
	a.logger.Info("report exported", zap.String("dir", dir), zap.String("snapshot", id))
	return nil
}

// parsePayload decodes a JSON object given inline or as @path.
func parsePayload(arg string) (models.Payload, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return models.Payload{}, nil
	}
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		arg = string(data)
	}
	var p models.Payload
	if err := sonic.UnmarshalString(arg, &p); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if p == nil {
		p = models.Payload{}
	}
	return p, nil
}

// withOrchestrator builds an orchestrator, runs fn and closes it once the
// event stream has drained.
func (a *app) withOrchestrator(cmd *cobra.Command, fn func(*orchestrator.Orchestrator) error) error {
	o, err := a.orchestrator(cmd.Context())
	if err != nil {
		return err
	}
	done := a.logEvents(o)
	runErr := fn(o)
	if err := o.Close(); err != nil && runErr == nil {
		runErr = err
	}
	<-done
	return runErr
}
