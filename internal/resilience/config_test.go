package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProviderRetry(t *testing.T) {
	cfg := ProviderRetry(5, 250)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)

	// Unset values keep the defaults.
	def := ProviderRetry(0, 0)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, def.MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().InitialBackoff, def.InitialBackoff)
}

func TestProviderBreaker(t *testing.T) {
	cfg := ProviderBreaker(7, 120)
	assert.Equal(t, 7, cfg.FailureThreshold)
	assert.Equal(t, 2*time.Minute, cfg.ResetTimeout)

	def := ProviderBreaker(0, 0)
	assert.Equal(t, DefaultCircuitBreakerConfig().FailureThreshold, def.FailureThreshold)
}
