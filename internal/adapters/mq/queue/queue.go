// Package queue is the mailbox in front of a planning session's event loop.
//
// Two ways in: Enqueue never blocks and is used for user commands, so a
// flooded session pushes back instead of piling up goroutines; Put blocks
// until there is room and is used for completions of collaborator calls,
// which must not be lost while the session is alive.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/crawlplan/pkg/metrics"
)

const defaultCapacity = 64

// Message is anything the event loop can handle.
type Message interface {
	Kind() string
}

// Queue provides non-blocking and blocking enqueue with channel-based dequeue.
type Queue interface {
	// Enqueue adds m without waiting. It returns ErrFull when there is no
	// room and ErrClosed after Close.
	Enqueue(ctx context.Context, m Message) error

	// Put adds m, waiting for room until ctx is done or the queue closes.
	Put(ctx context.Context, m Message) error

	// Dequeue returns a channel that receives messages in order.
	// The channel is closed when the queue is closed or ctx is done.
	Dequeue(ctx context.Context) <-chan Message

	// Len returns the current number of queued messages.
	Len(ctx context.Context) int

	// Close stops accepting messages. Messages still queued are dropped.
	Close() error

	// IsClosed returns true if the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int

	closeOnce sync.Once
	done      chan struct{}
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateMailboxCapacity(q.capacity)
	return q
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) error {
	if q.IsClosed() {
		metrics.RecordMailboxRejected("closed")
		return ErrClosed
	}

	select {
	case q.messages <- m:
		metrics.RecordMailboxEnqueue()
		return nil
	case <-ctx.Done():
		metrics.RecordMailboxRejected("context_cancelled")
		return fmt.Errorf("enqueue %s: %w", m.Kind(), ctx.Err())
	default:
		metrics.RecordMailboxRejected("full")
		return ErrFull
	}
}

func (q *InMemoryQueue) Put(ctx context.Context, m Message) error {
	if q.IsClosed() {
		return ErrClosed
	}

	select {
	case q.messages <- m:
		metrics.RecordMailboxEnqueue()
		return nil
	case <-q.done:
		return ErrClosed
	case <-ctx.Done():
		return fmt.Errorf("put %s: %w", m.Kind(), ctx.Err())
	}
}

func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			select {
			case m := <-q.messages:
				select {
				case out <- m:
				case <-q.done:
					return
				case <-ctx.Done():
					return
				}
			case <-q.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func (q *InMemoryQueue) Len(context.Context) int {
	return len(q.messages)
}

func (q *InMemoryQueue) Close() error {
	q.closeOnce.Do(func() { close(q.done) })
	return nil
}

func (q *InMemoryQueue) IsClosed() bool {
	select {
	case <-q.done:
		return true
	default:
		return false
	}
}
