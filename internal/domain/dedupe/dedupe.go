// Package dedupe tracks Idempotency-Key values so that a retried command is
// answered with the outcome of its first execution instead of running twice.
package dedupe

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// Outcome is the recorded answer for a key.
type Outcome struct {
	Status int
	Body   []byte
}

// Entry is what a key currently maps to. Pending is true while the first
// request carrying the key is still being processed. Fingerprint identifies
// the request the key was first used with.
type Entry struct {
	Outcome     Outcome
	Pending     bool
	Fingerprint string
}

// Deduper records idempotency keys to ensure at-most-once processing.
type Deduper interface {
	// SeenAndRecord atomically checks if key was seen and reserves it if not.
	// Returns the existing entry and true if key was already seen; otherwise
	// records a pending entry carrying fingerprint and returns false.
	SeenAndRecord(ctx context.Context, key, fingerprint string) (Entry, bool)

	// Complete stores the outcome for a reserved key.
	Complete(ctx context.Context, key string, outcome Outcome)

	// Unrecord removes a key, allowing it to be retried. Used when the
	// command failed before it had any effect (e.g. mailbox backpressure).
	Unrecord(ctx context.Context, key string)

	Size() int64
}

type record struct {
	key   string
	entry Entry
}

// inMemoryDeduper keeps keys in insertion order and evicts the oldest one
// once maxSize is reached. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]*list.Element
	order   *list.List
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: 50000,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.seen = make(map[string]*list.Element)
	d.order = list.New()
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, key, fingerprint string) (Entry, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		return el.Value.(*record).entry, true
	}

	if d.maxSize > 0 && d.order.Len() >= d.maxSize {
		d.evictOldest()
	}
	d.seen[key] = d.order.PushBack(&record{key: key, entry: Entry{Pending: true, Fingerprint: fingerprint}})
	d.size.Add(1)
	return Entry{}, false
}

func (d *inMemoryDeduper) Complete(_ context.Context, key string, outcome Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()

	el, ok := d.seen[key]
	if !ok {
		// evicted while in flight; nothing to answer replays with
		return
	}
	rec := el.Value.(*record)
	rec.entry = Entry{Outcome: outcome, Fingerprint: rec.entry.Fingerprint}
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if el, ok := d.seen[key]; ok {
		d.order.Remove(el)
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// evictOldest must be called with d.mu held.
func (d *inMemoryDeduper) evictOldest() {
	front := d.order.Front()
	if front == nil {
		return
	}
	d.order.Remove(front)
	delete(d.seen, front.Value.(*record).key)
	d.size.Add(-1)
}

// Size returns the current number of entries in the deduper.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
