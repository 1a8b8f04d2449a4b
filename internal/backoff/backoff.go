// Package backoff computes retry delays for the server's accept loop and the
// load generator's dialer.
package backoff

import (
	"math/rand"
	"sync"
	"time"
)

// maxShift prevents overflow in the exponential calculation.
const maxShift = 62

// Type selects the delay algorithm.
type Type int

const (
	// Exponential doubles the delay on every attempt (default).
	Exponential Type = iota
	// Jittered adds ±jitterFactor randomisation to the exponential delay so
	// that many clients retrying together spread out.
	Jittered
	// Decorrelated draws each delay between initialDelay and three times
	// the previous one, so concurrent retriers drift apart.
	Decorrelated
)

// Strategy calculates the delay before a retry.
type Strategy interface {
	// NextDelay returns the delay before retry number attempt (0-indexed).
	NextDelay(attempt int) time.Duration
}

// New creates a strategy of the given type.
func New(t Type, initialDelay, maxDelay time.Duration, jitterFactor float64) Strategy {
	switch t {
	case Jittered:
		return newJittered(initialDelay, maxDelay, jitterFactor)
	case Decorrelated:
		return newDecorrelated(initialDelay, maxDelay)
	default:
		return newExponential(initialDelay, maxDelay)
	}
}

// exponential implements initialDelay * 2^attempt, capped at maxDelay.
type exponential struct {
	initialDelay time.Duration
	maxDelay     time.Duration
}

func newExponential(initialDelay, maxDelay time.Duration) *exponential {
	return &exponential{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

func (e *exponential) NextDelay(attempt int) time.Duration {
	return calcExponentialDelay(attempt, e.initialDelay, e.maxDelay)
}

// jittered multiplies the exponential delay by a random factor in
// [1-jitterFactor, 1+jitterFactor].
//
// Example with jitterFactor=0.1: a base delay of 1s becomes a random value
// between 900ms and 1100ms.
type jittered struct {
	initialDelay, maxDelay time.Duration
	jitterFactor           float64
	rng                    *rand.Rand
	mu                     sync.Mutex
}

func newJittered(initialDelay, maxDelay time.Duration, jitterFactor float64) *jittered {
	return &jittered{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		jitterFactor: clamp(jitterFactor, 0, 1),
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for backoff jitter
	}
}

func (j *jittered) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}

	base := calcExponentialDelay(attempt, j.initialDelay, j.maxDelay)

	j.mu.Lock()
	multiplier := 1.0 + (j.rng.Float64()*2-1)*j.jitterFactor
	j.mu.Unlock()

	return clamp(time.Duration(float64(base)*multiplier), 0, j.maxDelay)
}

// decorrelated computes min(maxDelay, random(initialDelay, prev*3)). The
// delay depends on the previous one rather than on attempt alone, so a
// Strategy of this type should not be shared between retry loops.
type decorrelated struct {
	initialDelay, maxDelay time.Duration
	prev                   time.Duration
	rng                    *rand.Rand
	mu                     sync.Mutex
}

func newDecorrelated(initialDelay, maxDelay time.Duration) *decorrelated {
	return &decorrelated{
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
		prev:         initialDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())), // #nosec G404 -- crypto rand not needed for backoff jitter
	}
}

func (d *decorrelated) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		return 0
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// attempt 0 starts a new retry sequence
	if attempt == 0 {
		d.prev = d.initialDelay
		return d.initialDelay
	}

	upper := min(d.prev*3, d.maxDelay)
	span := upper - d.initialDelay
	if span <= 0 {
		d.prev = d.initialDelay
		return d.initialDelay
	}

	d.prev = d.initialDelay + time.Duration(d.rng.Int63n(int64(span)))
	return d.prev
}

func calcExponentialDelay(attempt int, initialDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		return 0
	}

	if attempt >= maxShift {
		return maxDelay
	}

	delay := time.Duration(int64(1)<<uint(attempt)) * initialDelay
	if delay > maxDelay || delay < 0 {
		return maxDelay
	}

	return delay
}

func clamp[T ~int64 | ~float64](v, lo, hi T) T {
	return min(max(v, lo), hi)
}
