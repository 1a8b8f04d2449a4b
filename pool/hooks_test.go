package pool_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/utkarsh5026/threadpool/pool"
)

// TestHooksBasic demonstrates basic hook usage
func TestHooksBasic(t *testing.T) {
	var mu sync.Mutex
	events := map[string]int{}

	p := pool.MustNew(2,
		pool.WithBeforeJob(func(workerID int) {
			mu.Lock()
			events["start"]++
			mu.Unlock()
		}),
		pool.WithAfterJob(func(workerID int, elapsed time.Duration, err error) {
			mu.Lock()
			if err != nil {
				events["end:error"]++
			} else {
				events["end"]++
			}
			mu.Unlock()
		}),
	)

	for range 3 {
		_ = p.ExecuteFunc(func() { time.Sleep(5 * time.Millisecond) })
	}
	if err := p.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()

	if events["start"] != 3 || events["end"] != 3 {
		t.Errorf("expected 3 starts and 3 ends, got %v", events)
	}
	if events["end:error"] != 0 {
		t.Errorf("expected no failed jobs, got %v", events)
	}
}

// TestHooksReceivePanic checks that the after hook sees the recovered panic
func TestHooksReceivePanic(t *testing.T) {
	var hookErr error
	var elapsed time.Duration

	p := pool.MustNew(1,
		pool.WithAfterJob(func(workerID int, d time.Duration, err error) {
			hookErr = err
			elapsed = d
		}),
	)

	_ = p.ExecuteFunc(func() {
		time.Sleep(10 * time.Millisecond)
		panic("hook panic")
	})
	_ = p.Close()

	var pe *pool.PanicError
	if !errors.As(hookErr, &pe) {
		t.Fatalf("expected *pool.PanicError in hook, got %v", hookErr)
	}
	if elapsed < 10*time.Millisecond {
		t.Errorf("expected elapsed >= 10ms, got %v", elapsed)
	}
}

// TestHooksWorkerIDs checks that hooks report ids in [0, size)
func TestHooksWorkerIDs(t *testing.T) {
	const size = 4

	var mu sync.Mutex
	seen := map[int]bool{}

	p := pool.MustNew(size, pool.WithBeforeJob(func(workerID int) {
		mu.Lock()
		seen[workerID] = true
		mu.Unlock()
	}))

	for range 100 {
		_ = p.ExecuteFunc(func() { time.Sleep(time.Millisecond) })
	}
	_ = p.Close()

	for id := range seen {
		if id < 0 || id >= size {
			t.Errorf("worker id %d out of range", id)
		}
	}
}

// TestRateLimit_ThrottlesJobStarts checks that WithRateLimit spaces out jobs
func TestRateLimit_ThrottlesJobStarts(t *testing.T) {
	p := pool.MustNew(4, pool.WithRateLimit(20, 1))

	start := time.Now()
	for range 5 {
		_ = p.ExecuteFunc(func() {})
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// burst of 1 at 20/s: four waits of ~50ms after the first job
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("expected rate limiting to take at least 150ms, took %v", elapsed)
	}
}
