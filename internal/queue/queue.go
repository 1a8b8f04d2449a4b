// Package queue provides the shared job queues used by the pool.
//
// Every queue is safe for any number of concurrent senders and receivers.
// Items are handed out in FIFO order, one receiver at a time, and each item
// is delivered to exactly one receiver.
package queue

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrClosed is returned by Send after Close, and by Recv once the queue
	// is closed and fully drained.
	ErrClosed = errors.New("queue is closed")
)

// defaultInitialCapacity is the starting ring size of an unbounded queue.
const defaultInitialCapacity = 64

// Queue is a blocking multi-producer multi-consumer FIFO.
type Queue[T any] interface {
	// Send enqueues v. Implementations with a bounded capacity block while
	// full and give up when ctx is done.
	Send(ctx context.Context, v T) error

	// Recv blocks until an item is available. Items sent before Close are
	// still returned; ErrClosed is returned only when nothing is left.
	Recv() (T, error)

	// Close stops further sends and wakes every blocked receiver.
	Close()

	// Len returns the number of items waiting to be received.
	Len() int
}

// Unbounded is a mutex-guarded ring deque. Send never blocks.
type Unbounded[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	size   int
	closed bool
}

// NewUnbounded creates an empty unbounded queue.
func NewUnbounded[T any]() *Unbounded[T] {
	q := &Unbounded[T]{
		ring: make([]T, defaultInitialCapacity),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Send appends v to the tail of the queue. ctx is unused because the call
// never blocks; it is accepted to satisfy Queue.
func (q *Unbounded[T]) Send(_ context.Context, v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}

	if q.size == len(q.ring) {
		q.grow()
	}

	q.ring[(q.head+q.size)%len(q.ring)] = v
	q.size++
	q.cond.Signal()
	return nil
}

// Recv removes the head of the queue, waiting for one if it is empty.
func (q *Unbounded[T]) Recv() (T, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.size == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.size == 0 {
		return zero, ErrClosed
	}

	v := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	return v, nil
}

// Close marks the queue closed. It is safe to call more than once.
func (q *Unbounded[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len returns the number of queued items.
func (q *Unbounded[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// grow doubles the ring, unwrapping it so head is at index 0.
// Must be called with mu held.
func (q *Unbounded[T]) grow() {
	next := make([]T, len(q.ring)*2)
	n := copy(next, q.ring[q.head:])
	copy(next[n:], q.ring[:q.head])
	q.ring = next
	q.head = 0
}

// Bounded is a queue backed by a buffered channel.
type Bounded[T any] struct {
	items  chan T
	quit   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
}

// NewBounded creates a queue holding at most capacity items. A capacity
// below one is raised to one.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{
		items: make(chan T, max(capacity, 1)),
		quit:  make(chan struct{}),
	}
}

// Send enqueues v, blocking while the queue is full.
func (q *Bounded[T]) Send(ctx context.Context, v T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	select {
	case q.items <- v:
		return nil
	case <-q.quit:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv returns the next item. Once closed, the remaining buffer is drained
// before ErrClosed is reported.
func (q *Bounded[T]) Recv() (T, error) {
	v, ok := <-q.items
	if !ok {
		var zero T
		return zero, ErrClosed
	}
	return v, nil
}

// Close stops further sends. Senders blocked on a full queue are released
// with ErrClosed before the channel is closed.
func (q *Bounded[T]) Close() {
	q.once.Do(func() {
		close(q.quit)

		q.mu.Lock()
		defer q.mu.Unlock()
		q.closed = true
		close(q.items)
	})
}

// Len returns the number of buffered items.
func (q *Bounded[T]) Len() int {
	return len(q.items)
}
