package orchestrator

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

// ProbeResult is the outcome of one worker's probe task.
type ProbeResult struct {
	WorkerID string                 `json:"worker_id"`
	TaskID   string                 `json:"task_id"`
	Decision models.RoutingDecision `json:"decision"`
	Result   models.ExecutionResult `json:"result"`
}

// Probe sends one sample task to every registered worker concurrently and
// waits for all of them. Results are sorted by worker id.
func (o *Orchestrator) Probe(ctx context.Context, payload models.Payload) ([]ProbeResult, error) {
	if o.isClosed() {
		return nil, ErrClosed
	}
	ids := o.registry.IDs()
	taskTypes := o.taskTypesByWorker()
	results := make([]ProbeResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	if o.opts.probeConcurrency > 0 {
		g.SetLimit(o.opts.probeConcurrency)
	}
	for i, id := range ids {
		g.Go(func() error {
			task := models.TaskDescriptor{
				ID:           "probe-" + uuid.NewString(),
				TaskType:     taskTypes[id],
				PriorityHint: models.PriorityNormal,
				Payload:      payload.Clone(),
			}
			decision, res := o.Dispatch(gctx, task, id)
			results[i] = ProbeResult{WorkerID: id, TaskID: task.ID, Decision: decision, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usable := 0
	for _, r := range results {
		if r.Result.Usable() {
			usable++
		}
	}
	o.logger.Info("probe finished", zap.Int("workers", len(results)), zap.Int("usable", usable))
	return results, nil
}

// taskTypesByWorker inverts the routing table. Workers reached by several
// task types get the alphabetically first; unlisted workers get Default.
func (o *Orchestrator) taskTypesByWorker() map[string]models.TaskType {
	table := o.router.Table()
	types := make([]models.TaskType, 0, len(table))
	for tt := range table {
		types = append(types, tt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	out := make(map[string]models.TaskType)
	for _, tt := range types {
		id := table[tt]
		if _, seen := out[id]; !seen || out[id] == models.TaskTypeDefault {
			out[id] = tt
		}
	}
	for _, id := range o.registry.IDs() {
		if _, ok := out[id]; !ok {
			out[id] = models.TaskTypeDefault
		}
	}
	return out
}
