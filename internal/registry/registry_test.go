package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/switchboard/pkg/models"
)

func testWorker(id string, capacity int) models.WorkerDescriptor {
	return models.WorkerDescriptor{
		WorkerID:              id,
		Tier:                  models.TierOperational,
		Capabilities:          []string{"b", "a"},
		Capacity:              capacity,
		AvgProcessingTime:     time.Second,
		SLA:                   5 * time.Second,
		HistoricalSuccessRate: 0.9,
	}
}

func TestRegisterAndLookup(t *testing.T) {
	r := New(nil)
	if err := r.Register(testWorker("w1", 2)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got, err := r.Lookup("w1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if got.WorkerID != "w1" || got.Capacity != 2 {
		t.Errorf("Lookup() = %+v, want w1 with capacity 2", got)
	}

	if _, err := r.Lookup("missing"); !errors.Is(err, ErrWorkerNotFound) {
		t.Errorf("Lookup(missing) error = %v, want ErrWorkerNotFound", err)
	}
}

func TestRegisterRejectsDuplicatesAndInvalid(t *testing.T) {
	r := New(nil)
	if err := r.Register(testWorker("w1", 1)); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(testWorker("w1", 1)); !errors.Is(err, ErrDuplicateWorker) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateWorker", err)
	}

	bad := testWorker("w2", 0)
	if err := r.Register(bad); err == nil {
		t.Error("Register() with zero capacity should fail")
	}
}

func TestLookupReturnsCopy(t *testing.T) {
	r := New(nil)
	_ = r.Register(testWorker("w1", 1))

	got, _ := r.Lookup("w1")
	got.Capabilities[0] = "mutated"
	got.CurrentLoad = 99

	again, _ := r.Lookup("w1")
	if again.Capabilities[0] == "mutated" || again.CurrentLoad != 0 {
		t.Errorf("registry state leaked through Lookup copy: %+v", again)
	}
}

func TestCapacitySnapshot(t *testing.T) {
	r := New(nil)
	_ = r.RegisterAll([]models.WorkerDescriptor{
		testWorker("a", 2),
		testWorker("b", 2),
	})

	if err := r.TryAcquire("a"); err != nil {
		t.Fatalf("TryAcquire(a) error = %v", err)
	}
	if err := r.TryAcquire("a"); err != nil {
		t.Fatalf("TryAcquire(a) error = %v", err)
	}
	if err := r.TryAcquire("b"); err != nil {
		t.Fatalf("TryAcquire(b) error = %v", err)
	}

	snap := r.CapacitySnapshot()
	if snap.Utilization != 0.75 {
		t.Errorf("Utilization = %v, want 0.75", snap.Utilization)
	}
	// a is exactly at capacity and must not count as available.
	if snap.Available != 1 {
		t.Errorf("Available = %d, want 1", snap.Available)
	}
	if snap.Overloaded != 1 {
		t.Errorf("Overloaded = %d, want 1", snap.Overloaded)
	}
	if len(snap.Workers) != 2 || snap.Workers[0].WorkerID != "a" {
		t.Errorf("Workers = %+v, want sorted a, b", snap.Workers)
	}
}

func TestTryAcquireRejectsOverflow(t *testing.T) {
	r := New(nil)
	_ = r.Register(testWorker("w", 1))

	if err := r.TryAcquire("w"); err != nil {
		t.Fatalf("first TryAcquire() error = %v", err)
	}
	if err := r.TryAcquire("w"); !errors.Is(err, ErrAtCapacity) {
		t.Fatalf("second TryAcquire() error = %v, want ErrAtCapacity", err)
	}

	got, _ := r.Lookup("w")
	if got.CurrentLoad != 1 {
		t.Errorf("CurrentLoad = %d, want 1", got.CurrentLoad)
	}

	r.Release("w")
	if err := r.TryAcquire("w"); err != nil {
		t.Errorf("TryAcquire() after Release error = %v", err)
	}
}

func TestAcquireQueuesUntilRelease(t *testing.T) {
	r := New(nil)
	_ = r.Register(testWorker("w", 1))
	_ = r.TryAcquire("w")

	acquired := make(chan error, 1)
	go func() {
		acquired <- r.Acquire(context.Background(), "w")
	}()

	select {
	case <-acquired:
		t.Fatal("Acquire() returned while the worker was full")
	case <-time.After(20 * time.Millisecond):
	}

	r.Release("w")

	select {
	case err := <-acquired:
		if err != nil {
			t.Fatalf("Acquire() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire() did not return after Release")
	}
}

func TestAcquireHonoursContext(t *testing.T) {
	r := New(nil)
	_ = r.Register(testWorker("w", 1))
	_ = r.TryAcquire("w")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := r.Acquire(ctx, "w"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Acquire() error = %v, want deadline exceeded", err)
	}
	got, _ := r.Lookup("w")
	if got.CurrentLoad != 1 {
		t.Errorf("CurrentLoad = %d, want 1", got.CurrentLoad)
	}
}

func TestConcurrentLoadNeverExceedsCapacity(t *testing.T) {
	r := New(nil)
	_ = r.Register(testWorker("w", 3))

	var wg sync.WaitGroup
	var mu sync.Mutex
	maxSeen := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.Acquire(context.Background(), "w"); err != nil {
				t.Errorf("Acquire() error = %v", err)
				return
			}
			d, _ := r.Lookup("w")
			mu.Lock()
			if d.CurrentLoad > maxSeen {
				maxSeen = d.CurrentLoad
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			r.Release("w")
		}()
	}
	wg.Wait()

	if maxSeen > 3 {
		t.Errorf("observed load %d above capacity 3", maxSeen)
	}
	d, _ := r.Lookup("w")
	if d.CurrentLoad != 0 {
		t.Errorf("CurrentLoad after all releases = %d, want 0", d.CurrentLoad)
	}
}

func TestObserveOutcome(t *testing.T) {
	r := New(nil)
	_ = r.Register(testWorker("w", 1))

	r.ObserveOutcome("w", false)
	got, _ := r.Lookup("w")
	want := 0.9 * 0.9
	if diff := got.HistoricalSuccessRate - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("HistoricalSuccessRate = %v, want %v", got.HistoricalSuccessRate, want)
	}

	r.ObserveOutcome("unknown", true)
}
