package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/utkarsh5026/threadpool/internal/cpu"
)

// worker is one long-lived goroutine plus the handle used to join it.
type worker struct {
	id int

	// thread is closed when the worker goroutine returns. It is set to nil
	// once joined so a worker is joined exactly once.
	thread chan struct{}

	executed atomic.Int64
	panicked atomic.Int64

	// errs is written only by the worker goroutine and read only after
	// thread is closed.
	errs []error
}

// newWorker starts the worker loop for id and returns immediately. ready is
// marked done once the goroutine is live and about to wait for messages.
func newWorker(id int, p *ThreadPool, ready *sync.WaitGroup) *worker {
	w := &worker{
		id:     id,
		thread: make(chan struct{}),
	}
	go w.run(p, ready)
	return w
}

// run receives messages until it is told to terminate. The queue hands each
// message to exactly one receiver and releases its lock before returning,
// so a long job never holds up the other workers.
func (w *worker) run(p *ThreadPool, ready *sync.WaitGroup) {
	defer close(w.thread)

	log := p.conf.logger.With().Int("worker", w.id).Logger()

	if p.conf.lockThreads {
		core, unlock := cpu.LockWorker(w.id, p.conf.pinCPU)
		defer unlock()
		log.Debug().Int("cpu", core).Msg("worker locked to OS thread")
	}

	p.live.Add(1)
	defer p.live.Add(-1)
	ready.Done()

	for {
		msg, err := p.queue.Recv()
		if err != nil {
			err = fmt.Errorf("%w: worker %d: %w", ErrWorkerExited, w.id, err)
			w.errs = append(w.errs, err)
			log.Error().Err(err).Msg("worker receive failed")
			return
		}

		switch msg.kind {
		case msgNewJob:
			log.Debug().Msg("worker got a job; executing")
			w.execute(p, msg.job)
		case msgTerminate:
			log.Debug().Msg("worker was told to terminate")
			return
		}
	}
}

// execute runs one job with rate limiting, hooks, and panic recovery.
func (w *worker) execute(p *ThreadPool, job Job) {
	if p.conf.rateLimiter != nil {
		// Wait only fails for a cancelled context or n > burst, neither of
		// which can happen here.
		_ = p.conf.rateLimiter.Wait(context.Background())
	}

	if p.conf.beforeJob != nil {
		p.conf.beforeJob(w.id)
	}

	p.busy.Add(1)
	start := time.Now()
	err := runWithRecovery(w.id, job)
	elapsed := time.Since(start)
	p.busy.Add(-1)

	w.executed.Add(1)
	p.completed.Add(1)

	if err != nil {
		w.panicked.Add(1)
		w.errs = append(w.errs, err)
		p.conf.logger.Error().Int("worker", w.id).Err(err).Msg("job panicked")
	}

	if p.conf.afterJob != nil {
		p.conf.afterJob(w.id, elapsed, err)
	}
}

// join blocks until the worker goroutine has returned and reports every
// failure it recorded. Subsequent calls return nil.
func (w *worker) join() error {
	if w.thread == nil {
		return nil
	}
	<-w.thread
	w.thread = nil
	return errors.Join(w.errs...)
}
