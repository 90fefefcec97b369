package dem

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/sells-group/terrain-cli/internal/resilience"
	"github.com/sells-group/terrain-cli/internal/terrain"
)

// Guard puts a circuit breaker in front of a Source. Once the breaker opens,
// calls fail with a *terrain.SourceUnavailableError so a batch run stops
// instead of failing every remaining airport one by one.
type Guard struct {
	Source
	breaker *resilience.CircuitBreaker
}

// NewGuard wraps src. Cancellation by the caller does not count as a
// backend failure.
func NewGuard(src Source, cfg resilience.CircuitBreakerConfig) *Guard {
	name := src.Name()
	cfg.ShouldTrip = func(err error) bool {
		return !errors.Is(err, context.Canceled)
	}
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("dem: circuit state change",
			zap.String("source", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Guard{Source: src, breaker: resilience.NewCircuitBreaker(cfg)}
}

// SampleAt implements terrain.Source.
func (g *Guard) SampleAt(ctx context.Context, points []terrain.GeoPoint) ([]float64, error) {
	vals, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) ([]float64, error) {
		return g.Source.SampleAt(ctx, points)
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, terrain.NewSourceUnavailableError(g.Name(), err)
	}
	return vals, err
}

// State exposes the breaker state.
func (g *Guard) State() resilience.CircuitState {
	return g.breaker.State()
}
