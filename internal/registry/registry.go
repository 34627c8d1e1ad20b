// Package registry holds the static catalogue of workers and their live load.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

var (
	// ErrWorkerNotFound is returned when a worker id is not registered.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrDuplicateWorker is returned when a worker id is registered twice.
	ErrDuplicateWorker = errors.New("worker already registered")
	// ErrAtCapacity is returned by TryAcquire when a worker has no free slot.
	ErrAtCapacity = errors.New("worker at capacity")
)

// successAlpha is the weight of the newest outcome in the success-rate EWMA.
const successAlpha = 0.1

// CapacitySnapshot is a point-in-time view of the registry's load.
type CapacitySnapshot struct {
	// Utilization is total load divided by total capacity.
	Utilization float64 `json:"utilization"`
	// Available counts workers with current_load < capacity.
	Available int `json:"available"`
	// Overloaded counts workers with current_load >= capacity.
	Overloaded int `json:"overloaded"`
	// Workers holds a copy of every descriptor, sorted by id.
	Workers []models.WorkerDescriptor `json:"workers"`
}

// entry pairs a descriptor with the semaphore that bounds its load.
type entry struct {
	desc  models.WorkerDescriptor
	slots *semaphore.Weighted
}

// Registry manages worker descriptors and their load counters.
// It provides thread-safe storage and retrieval of worker information.
type Registry struct {
	// workers maps worker IDs to entries.
	workers map[string]*entry
	// mu protects all descriptor fields.
	mu     sync.RWMutex
	logger *zap.Logger
}

// New creates an empty Registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		workers: make(map[string]*entry),
		logger:  logger.Named("registry"),
	}
}

// Register adds a worker to the registry.
// The descriptor's CurrentLoad is reset to zero.
func (r *Registry) Register(desc models.WorkerDescriptor) error {
	if err := desc.Validate(); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.workers[desc.WorkerID]; ok {
		return fmt.Errorf("register %s: %w", desc.WorkerID, ErrDuplicateWorker)
	}

	desc = desc.Clone()
	desc.CurrentLoad = 0
	r.workers[desc.WorkerID] = &entry{
		desc:  desc,
		slots: semaphore.NewWeighted(int64(desc.Capacity)),
	}
	r.logger.Debug("worker registered",
		zap.String("worker", desc.WorkerID),
		zap.String("tier", string(desc.Tier)),
		zap.Int("capacity", desc.Capacity))
	return nil
}

// RegisterAll registers a whole catalogue, stopping at the first error.
func (r *Registry) RegisterAll(descs []models.WorkerDescriptor) error {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns a copy of the descriptor for a worker.
func (r *Registry) Lookup(workerID string) (models.WorkerDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.workers[workerID]
	if !ok {
		return models.WorkerDescriptor{}, fmt.Errorf("lookup %q: %w", workerID, ErrWorkerNotFound)
	}
	return e.desc.Clone(), nil
}

// Has reports whether a worker is registered.
func (r *Registry) Has(workerID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.workers[workerID]
	return ok
}

// IDs returns all registered worker ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered workers.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// CapacitySnapshot computes utilization and availability across all workers.
func (r *Registry) CapacitySnapshot() CapacitySnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var snap CapacitySnapshot
	var load, capacity int
	snap.Workers = make([]models.WorkerDescriptor, 0, len(r.workers))
	for _, e := range r.workers {
		load += e.desc.CurrentLoad
		capacity += e.desc.Capacity
		if e.desc.Available() {
			snap.Available++
		} else {
			snap.Overloaded++
		}
		snap.Workers = append(snap.Workers, e.desc.Clone())
	}
	if capacity > 0 {
		snap.Utilization = float64(load) / float64(capacity)
	}
	sort.Slice(snap.Workers, func(i, j int) bool {
		return snap.Workers[i].WorkerID < snap.Workers[j].WorkerID
	})
	return snap
}

// Acquire reserves one load slot on a worker, waiting until a slot frees up
// or ctx is done.
func (r *Registry) Acquire(ctx context.Context, workerID string) error {
	e, err := r.entry(workerID)
	if err != nil {
		return err
	}
	if err := e.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire %s: %w", workerID, err)
	}
	r.adjustLoad(e, 1)
	return nil
}

// TryAcquire reserves one load slot without waiting.
func (r *Registry) TryAcquire(workerID string) error {
	e, err := r.entry(workerID)
	if err != nil {
		return err
	}
	if !e.slots.TryAcquire(1) {
		return fmt.Errorf("acquire %s: %w", workerID, ErrAtCapacity)
	}
	r.adjustLoad(e, 1)
	return nil
}

// Release frees a slot previously taken with Acquire or TryAcquire.
func (r *Registry) Release(workerID string) {
	e, err := r.entry(workerID)
	if err != nil {
		r.logger.Warn("release of unknown worker", zap.String("worker", workerID))
		return
	}

	r.mu.Lock()
	if e.desc.CurrentLoad == 0 {
		r.mu.Unlock()
		r.logger.Warn("release without reservation", zap.String("worker", workerID))
		return
	}
	e.desc.CurrentLoad--
	r.mu.Unlock()

	e.slots.Release(1)
}

// ObserveOutcome folds one task outcome into the worker's historical success rate.
func (r *Registry) ObserveOutcome(workerID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, found := r.workers[workerID]
	if !found {
		return
	}
	sample := 0.0
	if ok {
		sample = 1.0
	}
	rate := (1-successAlpha)*e.desc.HistoricalSuccessRate + successAlpha*sample
	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	e.desc.HistoricalSuccessRate = rate
}

func (r *Registry) entry(workerID string) (*entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.workers[workerID]
	if !ok {
		return nil, fmt.Errorf("worker %q: %w", workerID, ErrWorkerNotFound)
	}
	return e, nil
}

func (r *Registry) adjustLoad(e *entry, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.desc.CurrentLoad += delta
}
