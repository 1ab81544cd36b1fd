package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/resilience"
)

// breakerProvider decorates a provider with a circuit breaker so a provider
// that is down stops eating its slice of the request budget: once the breaker
// opens, calls fail immediately until the reset timeout passes.
type breakerProvider struct {
	inner Provider
	cb    *resilience.CircuitBreaker
}

// WithBreaker wraps a provider in a circuit breaker.
func WithBreaker(p Provider, cb *resilience.CircuitBreaker) Provider {
	return &breakerProvider{inner: p, cb: cb}
}

func (b *breakerProvider) ID() string { return b.inner.ID() }

func (b *breakerProvider) Capabilities() Capabilities { return b.inner.Capabilities() }

func (b *breakerProvider) Appraise(ctx context.Context, item ItemContext) (*model.Appraisal, error) {
	a, err := resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (*model.Appraisal, error) {
		return b.inner.Appraise(ctx, item)
	})
	if err != nil && resilience.IsTransient(err) {
		failures, state := b.cb.Counters()
		zap.L().Debug("provider: transient failure",
			zap.String("provider", b.inner.ID()),
			zap.Int("consecutive_failures", failures),
			zap.String("circuit", state.String()))
	}
	return a, err
}
