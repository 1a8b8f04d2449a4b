package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/samber/lo"

	"github.com/utkarsh5026/threadpool/internal/queue"
)

// ThreadPool runs jobs on a fixed set of workers fed by one shared queue.
//
// Lifecycle: active from New until Close (or Shutdown) is first called;
// then shutting down while terminate messages are broadcast and workers
// joined; then drained. A pool never becomes active again.
type ThreadPool struct {
	conf    *poolConfig
	workers []*worker
	queue   queue.Queue[message]

	// mu orders submissions against the start of shutdown: Execute holds it
	// for reading while enqueueing, Close takes it for writing to flip closed.
	mu     sync.RWMutex
	closed bool

	closeOnce sync.Once
	drained   chan struct{}
	closeErr  error

	live      atomic.Int32
	busy      atomic.Int32
	submitted atomic.Int64
	completed atomic.Int64
}

// New creates a pool with exactly size workers. The workers are running and
// waiting for jobs by the time New returns.
//
// New returns ErrZeroSize, and starts nothing, when size is not positive.
//
// Example:
//
//	p, err := pool.New(4, pool.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
func New(size int, opts ...Option) (*ThreadPool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrZeroSize, size)
	}

	conf := createConfig(opts...)
	p := &ThreadPool{
		conf:    conf,
		workers: make([]*worker, 0, size),
		queue:   newQueue(conf),
		drained: make(chan struct{}),
	}

	var ready sync.WaitGroup
	ready.Add(size)
	for id := range size {
		p.workers = append(p.workers, newWorker(id, p, &ready))
	}
	ready.Wait()

	conf.logger.Debug().Int("size", size).Msg("thread pool started")
	return p, nil
}

// MustNew is like New but panics if the pool cannot be created.
func MustNew(size int, opts ...Option) *ThreadPool {
	p, err := New(size, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Size returns the number of workers.
func (p *ThreadPool) Size() int {
	return len(p.workers)
}

// Execute queues job for execution by the next idle worker.
//
// With the default unbounded queue Execute never blocks. It returns
// ErrPoolClosed once shutdown has begun, in which case the job never runs.
func (p *ThreadPool) Execute(job Job) error {
	return p.ExecuteContext(context.Background(), job)
}

// ExecuteFunc queues f as a job.
func (p *ThreadPool) ExecuteFunc(f func()) error {
	if f == nil {
		return ErrNilJob
	}
	return p.Execute(JobFunc(f))
}

// ExecuteContext is like Execute, but gives up with ctx.Err() if the pool
// was built with WithQueueCapacity and the queue stays full until ctx is
// done.
func (p *ThreadPool) ExecuteContext(ctx context.Context, job Job) error {
	if job == nil {
		return ErrNilJob
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.submitted.Add(1)
	if err := p.queue.Send(ctx, newJobMessage(job)); err != nil {
		p.submitted.Add(-1)
		if errors.Is(err, queue.ErrClosed) {
			return ErrPoolClosed
		}
		return err
	}

	return nil
}

// Close shuts the pool down and waits for every worker to exit.
//
// Jobs accepted before Close run to completion first. Close is idempotent:
// every call blocks until the first one has finished and returns the same
// result, which joins every job panic and worker failure recorded over the
// pool's lifetime.
func (p *ThreadPool) Close() error {
	p.closeOnce.Do(p.shutdown)
	<-p.drained
	return p.closeErr
}

// Shutdown starts Close and waits for it to finish or for ctx to be done,
// whichever comes first. On ctx expiry it returns ctx.Err(); the workers
// keep draining in the background and a later Close still waits for them.
func (p *ThreadPool) Shutdown(ctx context.Context) error {
	go func() { _ = p.Close() }()

	select {
	case <-p.drained:
		return p.closeErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// shutdown broadcasts one terminate per worker, then joins them all. The
// two phases are never interleaved: a terminate may be taken by any worker,
// so joining a specific one before every terminate is queued could wait on
// a message a sibling already consumed.
func (p *ThreadPool) shutdown() {
	defer close(p.drained)

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	log := p.conf.logger
	log.Debug().Int("workers", len(p.workers)).Msg("sending terminate message to all workers")

	var errs []error
	for range p.workers {
		if err := p.queue.Send(context.Background(), terminateMessage); err != nil {
			errs = append(errs, fmt.Errorf("send terminate: %w", err))
		}
	}
	p.queue.Close()

	log.Debug().Msg("shutting down all workers")
	for _, w := range p.workers {
		log.Debug().Int("worker", w.id).Msg("shutting down worker")
		if err := w.join(); err != nil {
			errs = append(errs, err)
		}
	}

	p.closeErr = errors.Join(errs...)
	if p.closeErr != nil {
		log.Error().Err(p.closeErr).Msg("thread pool drained with errors")
		return
	}
	log.Debug().Msg("thread pool drained")
}

// WorkerStats describes one worker.
type WorkerStats struct {
	ID       int   `json:"id"`
	Executed int64 `json:"executed"`
	Panicked int64 `json:"panicked"`
}

// Stats is a point-in-time snapshot of the pool. Counters are read
// independently and may be mutually inconsistent by in-flight jobs.
type Stats struct {
	Size      int           `json:"size"`
	Live      int           `json:"live"`
	Busy      int           `json:"busy"`
	Queued    int           `json:"queued"`
	Submitted int64         `json:"submitted"`
	Completed int64         `json:"completed"`
	Panicked  int64         `json:"panicked"`
	Workers   []WorkerStats `json:"workers"`
}

// Stats returns a snapshot of the pool's counters.
func (p *ThreadPool) Stats() Stats {
	workers := lo.Map(p.workers, func(w *worker, _ int) WorkerStats {
		return WorkerStats{
			ID:       w.id,
			Executed: w.executed.Load(),
			Panicked: w.panicked.Load(),
		}
	})

	return Stats{
		Size:      len(p.workers),
		Live:      int(p.live.Load()),
		Busy:      int(p.busy.Load()),
		Queued:    p.queue.Len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  lo.SumBy(workers, func(w WorkerStats) int64 { return w.Panicked }),
		Workers:   workers,
	}
}
