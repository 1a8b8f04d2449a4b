package pool

import (
	"sync"
	"testing"
	"time"
)

// queueConfig defines a test configuration for a queue flavour
type queueConfig struct {
	name string
	opts []Option
}

// getAllQueues returns every queue flavour the pool can be built with
func getAllQueues() []queueConfig {
	return []queueConfig{
		{
			name: "Unbounded",
			opts: nil,
		},
		{
			name: "Bounded",
			opts: []Option{WithQueueCapacity(8)},
		},
		{
			name: "LockedThreads",
			opts: []Option{WithLockedThreads(false)},
		},
	}
}

func runQueueTest(t *testing.T, testFunc func(t *testing.T, q queueConfig), additionalOpts ...Option) {
	for _, q := range getAllQueues() {
		q.opts = append(q.opts, additionalOpts...)
		t.Run(q.name, func(t *testing.T) {
			testFunc(t, q)
		})
	}
}

// gate blocks jobs until released and tracks how many run at once.
type gate struct {
	release chan struct{}
	mu      sync.Mutex
	running int
	peak    int
	started chan struct{}
}

func newGate(buffer int) *gate {
	return &gate{
		release: make(chan struct{}),
		started: make(chan struct{}, buffer),
	}
}

func (g *gate) job() Job {
	return JobFunc(func() {
		g.mu.Lock()
		g.running++
		g.peak = max(g.peak, g.running)
		g.mu.Unlock()

		g.started <- struct{}{}
		<-g.release

		g.mu.Lock()
		g.running--
		g.mu.Unlock()
	})
}

func (g *gate) open() {
	close(g.release)
}

func (g *gate) peakConcurrency() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.peak
}

// waitStarted waits for n jobs to signal that they started.
func (g *gate) waitStarted(t *testing.T, n int) {
	t.Helper()
	for i := range n {
		select {
		case <-g.started:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d jobs started", i, n)
		}
	}
}
