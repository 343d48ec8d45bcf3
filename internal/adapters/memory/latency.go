// Package memory provides offline collaborators: a deterministic venue
// catalog, a straight-line walking router and a small gazetteer. They stand in
// for the Google services in development, tests and the scenario driver.
package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Default simulated latency range.
const (
	defaultMinLatency = 20 * time.Millisecond
	defaultMaxLatency = 60 * time.Millisecond
	defaultRandomSeed = 42
)

// latency simulates a remote call.
type latency struct {
	mu   sync.Mutex
	min  time.Duration
	max  time.Duration
	rng  *rand.Rand
	fail func() error
}

func newLatency() *latency {
	return &latency{
		min: defaultMinLatency,
		max: defaultMaxLatency,
		rng: rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // deterministic seed for reproducible runs
	}
}

func (l *latency) set(minLatency, maxLatency time.Duration) {
	if minLatency < 0 || maxLatency < minLatency {
		return
	}
	l.min, l.max = minLatency, maxLatency
}

// wait sleeps for a random duration in [min, max], honoring ctx.
func (l *latency) wait(ctx context.Context) error {
	l.mu.Lock()
	d := l.min
	if l.max > l.min {
		d += time.Duration(l.rng.Int63n(int64(l.max - l.min)))
	}
	fail := l.fail
	l.mu.Unlock()

	if d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
	if fail != nil {
		return fail()
	}
	return nil
}

// Option configures the offline collaborators.
type Option func(*latency)

// WithLatencyRange sets the simulated latency range. A zero range disables
// the delay.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(l *latency) { l.set(minLatency, maxLatency) }
}

// WithFailure makes every call fail with the error returned by f, after the
// simulated latency. Used to exercise error paths.
func WithFailure(f func() error) Option {
	return func(l *latency) { l.fail = f }
}
