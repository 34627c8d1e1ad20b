// Package orchestrator wires the worker registry, router, execution wrapper,
// usage tracker and pipeline sequencer into one context object.
//
// An Orchestrator is created once per process run and passed explicitly to
// whatever needs it; there is no package-level state. It provides:
//   - Dispatch: route (or pin) a task, reserve a load slot, execute it
//   - RunPipeline: run a named, gated sequence of stages
//   - Probe: fan one sample task out to every worker and gather the results
//   - a cost budget that turns remote calls into fallbacks once spent
//   - an event stream describing routing, retries and pipeline progress
//
// Example usage:
//
//	orch, err := orchestrator.New(workers.Catalogue(backend), orchestrator.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	defer orch.Close()
//	run, err := orch.RunPipeline(ctx, "enterprise_sales", models.Payload{"company": "Acme"})
package orchestrator
