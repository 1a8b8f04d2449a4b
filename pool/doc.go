// Package pool provides a fixed-size thread pool that runs submitted jobs on
// a set of long-lived workers.
//
// The primary type is ThreadPool. It owns exactly Size() workers, started
// when the pool is created, and the sending side of a shared FIFO queue.
// Execute wraps a Job into a message on that queue; whichever idle worker
// takes the message next runs the job to completion on its own goroutine,
// then goes back to waiting. At most Size() jobs run at once; the rest wait
// in the queue in submission order.
//
// # Basic Usage
//
//	p, err := pool.New(4)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	_ = p.ExecuteFunc(func() {
//	    fmt.Println("hello from a worker")
//	})
//
// # Shutdown
//
// Go has no deterministic destructors, so the owner must release the pool
// explicitly, normally with a deferred Close. Close runs the shutdown
// protocol exactly once:
//
//  1. new submissions are rejected with ErrPoolClosed;
//  2. one terminate message per worker is enqueued behind all pending jobs;
//  3. every worker is joined.
//
// All terminates are broadcast before any worker is joined. A worker only
// exits after taking a terminate message, and every job submitted before
// Close sits ahead of those messages in the queue, so every accepted job
// runs before Close returns. Shutdown does the same but lets a context bound
// how long the caller waits.
//
// # Error Handling
//
// A job that panics does not take its worker down: the panic is recovered,
// converted to a *PanicError with a stack trace, logged, and reported again
// by Close through errors.Join. A worker whose queue closes unexpectedly
// exits with ErrWorkerExited without affecting its siblings.
//
// # Configuration Options
//
//   - WithLogger(l): zerolog logger for worker lifecycle events
//   - WithQueueCapacity(n): bound the queue; Execute blocks while it is full
//   - WithRateLimit(perSecond, burst): throttle job starts across workers
//   - WithBeforeJob / WithAfterJob: per-job hooks (metrics, tracing)
//   - WithLockedThreads(pin): run each worker on its own locked OS thread
package pool
