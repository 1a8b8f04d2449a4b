package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestClose_WaitsForAcceptedJobs(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := MustNew(2, q.opts...)

		var completed atomic.Int32
		for range 20 {
			_ = p.ExecuteFunc(func() {
				time.Sleep(5 * time.Millisecond)
				completed.Add(1)
			})
		}

		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		if completed.Load() != 20 {
			t.Errorf("expected 20 completed jobs, got %d", completed.Load())
		}

		stats := p.Stats()
		if stats.Live != 0 {
			t.Errorf("expected no live workers after close, got %d", stats.Live)
		}
		// every terminate message was consumed by exactly one worker
		if stats.Queued != 0 {
			t.Errorf("expected empty queue after close, got %d", stats.Queued)
		}
	})
}

func TestClose_Idempotent(t *testing.T) {
	p := MustNew(3)
	_ = p.ExecuteFunc(func() { time.Sleep(20 * time.Millisecond) })

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = p.Close()
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("close %d: unexpected error %v", i, err)
		}
	}

	if err := p.Close(); err != nil {
		t.Errorf("close after drain: %v", err)
	}
}

func TestExecute_AfterCloseFails(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := MustNew(2, q.opts...)
		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		var ran atomic.Bool
		err := p.ExecuteFunc(func() { ran.Store(true) })
		if !errors.Is(err, ErrPoolClosed) {
			t.Errorf("expected ErrPoolClosed, got %v", err)
		}

		time.Sleep(10 * time.Millisecond)
		if ran.Load() {
			t.Error("job submitted after close must not run")
		}
	})
}

func TestClose_RacingSubmissionsNeverDropAcceptedJobs(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := MustNew(4, q.opts...)

		var accepted, ran atomic.Int64
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 200 {
					err := p.ExecuteFunc(func() { ran.Add(1) })
					if err == nil {
						accepted.Add(1)
						continue
					}
					if !errors.Is(err, ErrPoolClosed) {
						t.Errorf("unexpected execute error: %v", err)
					}
					return
				}
			}()
		}

		time.Sleep(time.Millisecond)
		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		wg.Wait()

		if accepted.Load() != ran.Load() {
			t.Errorf("accepted %d jobs but ran %d", accepted.Load(), ran.Load())
		}
	})
}

func TestShutdown_ContextExpiresBeforeDrain(t *testing.T) {
	p := MustNew(1)
	g := newGate(1)
	_ = p.Execute(g.job())
	g.waitStarted(t, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	// shutdown has begun even though the caller stopped waiting
	if err := p.ExecuteFunc(func() {}); !errors.Is(err, ErrPoolClosed) {
		t.Errorf("expected ErrPoolClosed, got %v", err)
	}

	g.open()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if live := p.Stats().Live; live != 0 {
		t.Errorf("expected no live workers, got %d", live)
	}
}

func TestShutdown_Completes(t *testing.T) {
	p := MustNew(2)

	var completed atomic.Int32
	for range 4 {
		_ = p.ExecuteFunc(func() { completed.Add(1) })
	}

	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if completed.Load() != 4 {
		t.Errorf("expected 4 completed jobs, got %d", completed.Load())
	}
}

func TestWorker_JoinedExactlyOnce(t *testing.T) {
	p := MustNew(2)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for _, w := range p.workers {
		if w.thread != nil {
			t.Errorf("worker %d handle not consumed by join", w.id)
		}
		if err := w.join(); err != nil {
			t.Errorf("second join of worker %d: %v", w.id, err)
		}
	}
}
