package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flipscout/appraisal-cli/internal/model"
	"github.com/flipscout/appraisal-cli/internal/resilience"
)

type flakyProvider struct {
	id    string
	calls int
	err   error
}

func (f *flakyProvider) ID() string                 { return f.id }
func (f *flakyProvider) Capabilities() Capabilities { return Capabilities{WebSearch: true} }

func (f *flakyProvider) Appraise(context.Context, ItemContext) (*model.Appraisal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.Appraisal{ItemName: "x", Decision: model.DecisionBuy}, nil
}

func TestWithBreaker_PassesThrough(t *testing.T) {
	inner := &flakyProvider{id: "perplexity"}
	p := WithBreaker(inner, resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()))

	assert.Equal(t, "perplexity", p.ID())
	assert.True(t, p.Capabilities().WebSearch)

	a, err := p.Appraise(context.Background(), ItemContext{ItemName: "x"})
	require.NoError(t, err)
	assert.Equal(t, model.DecisionBuy, a.Decision)
}

func TestWithBreaker_OpensAfterThreshold(t *testing.T) {
	inner := &flakyProvider{id: "perplexity", err: errors.New("boom")}
	p := WithBreaker(inner, resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: 2,
	}))

	ctx := context.Background()
	_, err := p.Appraise(ctx, ItemContext{ItemName: "x"})
	require.Error(t, err)
	_, err = p.Appraise(ctx, ItemContext{ItemName: "x"})
	require.Error(t, err)

	// Circuit is now open: the inner provider is no longer called.
	_, err = p.Appraise(ctx, ItemContext{ItemName: "x"})
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}
