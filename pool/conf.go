package pool

import (
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/utkarsh5026/threadpool/internal/queue"
)

// Option is a functional option for configuring a ThreadPool.
type Option func(*poolConfig)

type poolConfig struct {
	logger        zerolog.Logger
	queueCapacity int
	rateLimiter   *rate.Limiter
	beforeJob     func(workerID int)
	afterJob      func(workerID int, elapsed time.Duration, err error)
	lockThreads   bool
	pinCPU        bool
}

// WithLogger sets the logger used for worker lifecycle events.
// If not specified, the pool logs nothing.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *poolConfig) {
		cfg.logger = l
	}
}

// WithQueueCapacity bounds the shared queue to capacity messages. Execute
// blocks while the queue is full. If not specified, or if capacity is not
// positive, the queue is unbounded and Execute never blocks.
func WithQueueCapacity(capacity int) Option {
	return func(cfg *poolConfig) {
		if capacity > 0 {
			cfg.queueCapacity = capacity
		}
	}
}

// WithRateLimit limits how many jobs start per second across all workers.
// burst is the number of jobs that may start back to back.
//
// Example:
//
//	WithRateLimit(10, 5) // 10 jobs/sec with a burst of 5
func WithRateLimit(jobsPerSecond float64, burst int) Option {
	return func(cfg *poolConfig) {
		if jobsPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(jobsPerSecond), burst)
		}
	}
}

// WithBeforeJob registers a hook called on the worker right before a job
// runs.
func WithBeforeJob(fn func(workerID int)) Option {
	return func(cfg *poolConfig) {
		cfg.beforeJob = fn
	}
}

// WithAfterJob registers a hook called on the worker right after a job
// returns. err is a *PanicError when the job panicked, nil otherwise.
func WithAfterJob(fn func(workerID int, elapsed time.Duration, err error)) Option {
	return func(cfg *poolConfig) {
		cfg.afterJob = fn
	}
}

// WithLockedThreads makes every worker lock its goroutine to a dedicated OS
// thread for its whole lifetime. With pin set, worker i is additionally
// restricted to CPU i mod NumCPU where the platform supports it.
func WithLockedThreads(pin bool) Option {
	return func(cfg *poolConfig) {
		cfg.lockThreads = true
		cfg.pinCPU = pin
	}
}

func createConfig(opts ...Option) *poolConfig {
	cfg := &poolConfig{
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

func newQueue(cfg *poolConfig) queue.Queue[message] {
	if cfg.queueCapacity > 0 {
		return queue.NewBounded[message](cfg.queueCapacity)
	}
	return queue.NewUnbounded[message]()
}
