package google

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/pkg/logger"
	"github.com/okian/crawlplan/pkg/metrics"
	"golang.org/x/time/rate"
)

// BreakerSettings configure the circuit breaker in front of each API.
type BreakerSettings struct {
	FailureRate float64
	MinRequests uint
	Window      time.Duration
	Delay       time.Duration
}

// DefaultBreakerSettings open after 60% of at least 5 calls fail within 10s
// and try again after 30s.
var DefaultBreakerSettings = BreakerSettings{
	FailureRate: 0.6,
	MinRequests: 5,
	Window:      10 * time.Second,
	Delay:       30 * time.Second,
}

// guard applies the shared quota and a per-API circuit breaker to a call,
// records latency and maps every failure to ErrCollaboratorUnavailable.
type guard struct {
	name    string
	cb      circuitbreaker.CircuitBreaker[any]
	limiter *rate.Limiter
	logger  logger.Logger
}

func newGuard(name string, s BreakerSettings, limiter *rate.Limiter, log logger.Logger) *guard {
	g := &guard{name: name, limiter: limiter, logger: log}
	g.cb = circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(s.FailureRate, s.MinRequests, s.Window).
		WithDelay(s.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			log.Warn(context.Background(), "circuit breaker state changed",
				logger.String("collaborator", name),
				logger.String("from", e.OldState.String()),
				logger.String("to", e.NewState.String()),
			)
			metrics.UpdateBreakerState(name, stateToFloat(e.NewState))
		}).
		Build()
	metrics.UpdateBreakerState(name, stateToFloat(circuitbreaker.ClosedState))
	return g
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

// do runs fn. ErrNotFound passes through unchanged and counts as a success
// for the breaker.
func (g *guard) do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.limiter.Wait(ctx); err != nil {
		metrics.RecordCollaboratorError(g.name, "quota")
		return fmt.Errorf("%w: %s quota wait: %v", provider.ErrCollaboratorUnavailable, g.name, err)
	}
	if !g.cb.TryAcquirePermit() {
		metrics.RecordCollaboratorError(g.name, "breaker_open")
		return fmt.Errorf("%w: %s: %w", provider.ErrCollaboratorUnavailable, g.name, circuitbreaker.ErrOpen)
	}

	start := time.Now()
	err := fn(ctx)
	metrics.RecordCollaboratorLatency(g.name, float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil, errors.Is(err, provider.ErrNotFound):
		g.cb.RecordSuccess()
		return err
	case errors.Is(err, context.Canceled):
		// The caller went away; that says nothing about the API.
		g.cb.RecordSuccess()
	default:
		g.cb.RecordError(err)
	}

	reason := "error"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "timeout"
	}
	metrics.RecordCollaboratorError(g.name, reason)
	g.logger.Warn(ctx, "collaborator call failed", logger.String("collaborator", g.name), logger.Error(err))
	return fmt.Errorf("%w: %s: %v", provider.ErrCollaboratorUnavailable, g.name, err)
}

// state is exposed for tests and health reporting.
func (g *guard) state() circuitbreaker.State { return g.cb.State() }
