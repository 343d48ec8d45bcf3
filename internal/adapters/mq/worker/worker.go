// Package worker runs the event loop that serializes every state change of a
// planning session.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/crawlplan/internal/adapters/mq/queue"
	"github.com/okian/crawlplan/pkg/logger"
	"github.com/okian/crawlplan/pkg/metrics"
)

// Queue defines how the loop receives messages.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Message
}

// Handler processes one message. Handle is never called concurrently.
type Handler interface {
	Handle(ctx context.Context, m queue.Message)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, m queue.Message)

func (f HandlerFunc) Handle(ctx context.Context, m queue.Message) { f(ctx, m) }

// Loop feeds messages from a queue to a handler, one at a time.
type Loop struct {
	queue   Queue
	handler Handler
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewLoop creates a loop with configuration options.
func NewLoop(q Queue, h Handler, opts ...Option) *Loop {
	l := &Loop{
		queue:    q,
		handler:  h,
		name:     "loop",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run processes messages until ctx is done, Shutdown is called or the queue
// closes.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	messages := l.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.shutdown:
			return
		case m, ok := <-messages:
			if !ok {
				return
			}
			l.process(ctx, m)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} { return l.done }

// Shutdown stops the loop and waits for the message in progress to finish.
func (l *Loop) Shutdown(ctx context.Context) error {
	select {
	case <-l.shutdown:
	default:
		close(l.shutdown)
	}

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.logger.Warn(ctx, "shutdown timed out", logger.String("loop", l.name))
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (l *Loop) process(ctx context.Context, m queue.Message) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error(ctx, "handler panicked",
				logger.String("loop", l.name),
				logger.String("kind", m.Kind()),
				logger.Any("panic", r),
			)
		}
		metrics.RecordMessageHandled(m.Kind(), float64(time.Since(start).Microseconds())/1000)
	}()

	l.handler.Handle(ctx, m)
}
