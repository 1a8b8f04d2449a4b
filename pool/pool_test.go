package pool

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestNew_Sizing(t *testing.T) {
	tests := []struct {
		name        string
		size        int
		expectError bool
	}{
		{"zero workers", 0, true},
		{"negative workers", -1, true},
		{"single worker", 1, false},
		{"four workers", 4, false},
		{"many workers", 32, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.size)
			if tt.expectError {
				if !errors.Is(err, ErrZeroSize) {
					t.Errorf("expected ErrZeroSize, got %v", err)
				}
				if p != nil {
					t.Error("expected nil pool on error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer p.Close()

			if p.Size() != tt.size {
				t.Errorf("expected size %d, got %d", tt.size, p.Size())
			}

			// workers are live as soon as New returns
			if live := p.Stats().Live; live != tt.size {
				t.Errorf("expected %d live workers, got %d", tt.size, live)
			}
		})
	}
}

func TestMustNew_PanicsOnZeroSize(t *testing.T) {
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected MustNew(0) to panic")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrZeroSize) {
			t.Errorf("expected ErrZeroSize panic, got %v", r)
		}
	}()

	MustNew(0)
}

func TestExecute_IndependentJobsAllRun(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := MustNew(4, q.opts...)

		var mu sync.Mutex
		var sink []string
		for _, marker := range []string{"A", "B"} {
			err := p.ExecuteFunc(func() {
				mu.Lock()
				sink = append(sink, marker)
				mu.Unlock()
			})
			if err != nil {
				t.Fatalf("execute: %v", err)
			}
		}

		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		slices.Sort(sink)
		if !slices.Equal(sink, []string{"A", "B"}) {
			t.Errorf("expected both markers, got %v", sink)
		}
	})
}

func TestExecute_SingleWorkerPreservesOrder(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := MustNew(1, q.opts...)

		var sink []string
		for _, marker := range []string{"1", "2", "3"} {
			if err := p.ExecuteFunc(func() { sink = append(sink, marker) }); err != nil {
				t.Fatalf("execute: %v", err)
			}
		}

		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		if !slices.Equal(sink, []string{"1", "2", "3"}) {
			t.Errorf("expected [1 2 3], got %v", sink)
		}
	})
}

func TestExecute_SingleWorkerOrderManyJobs(t *testing.T) {
	p := MustNew(1)

	const n = 500
	order := make([]int, 0, n)
	for i := range n {
		_ = p.ExecuteFunc(func() { order = append(order, i) })
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	for i, v := range order {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
	if len(order) != n {
		t.Errorf("expected %d jobs, got %d", n, len(order))
	}
}

func TestExecute_EachJobRunsExactlyOnce(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		p := MustNew(8, q.opts...)

		const n = 2000
		runs := make([]atomic.Int32, n)
		for i := range n {
			if err := p.ExecuteFunc(func() { runs[i].Add(1) }); err != nil {
				t.Fatalf("execute %d: %v", i, err)
			}
		}

		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		for i := range runs {
			if c := runs[i].Load(); c != 1 {
				t.Fatalf("job %d ran %d times", i, c)
			}
		}

		stats := p.Stats()
		if stats.Submitted != n || stats.Completed != n {
			t.Errorf("expected %d submitted and completed, got %d/%d", n, stats.Submitted, stats.Completed)
		}
	})
}

func TestExecute_BoundedConcurrency(t *testing.T) {
	runQueueTest(t, func(t *testing.T, q queueConfig) {
		const size, jobs = 3, 10

		p := MustNew(size, q.opts...)
		g := newGate(jobs)

		for range jobs {
			if err := p.Execute(g.job()); err != nil {
				t.Fatalf("execute: %v", err)
			}
		}

		g.waitStarted(t, size)

		// nobody else may start while all workers are occupied
		select {
		case <-g.started:
			t.Fatal("more jobs started than there are workers")
		case <-time.After(50 * time.Millisecond):
		}

		stats := p.Stats()
		if stats.Busy != size {
			t.Errorf("expected %d busy workers, got %d", size, stats.Busy)
		}
		if stats.Queued != jobs-size {
			t.Errorf("expected %d queued jobs, got %d", jobs-size, stats.Queued)
		}

		g.open()
		if err := p.Close(); err != nil {
			t.Fatalf("close: %v", err)
		}

		if peak := g.peakConcurrency(); peak != size {
			t.Errorf("expected peak concurrency %d, got %d", size, peak)
		}
	})
}

func TestExecute_NilJob(t *testing.T) {
	p := MustNew(1)
	defer p.Close()

	if err := p.Execute(nil); !errors.Is(err, ErrNilJob) {
		t.Errorf("expected ErrNilJob, got %v", err)
	}
	if err := p.ExecuteFunc(nil); !errors.Is(err, ErrNilJob) {
		t.Errorf("expected ErrNilJob, got %v", err)
	}
}

func TestExecuteContext_FullQueueGivesUp(t *testing.T) {
	p := MustNew(1, WithQueueCapacity(1))
	g := newGate(2)

	// occupy the worker, then fill the single queue slot
	_ = p.Execute(g.job())
	g.waitStarted(t, 1)
	_ = p.Execute(g.job())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := p.ExecuteContext(ctx, g.job()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	g.open()
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := p.Stats().Completed; got != 2 {
		t.Errorf("expected 2 completed jobs, got %d", got)
	}
}
