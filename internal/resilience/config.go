package resilience

import "time"

// ProviderRetry builds the retry policy for provider API calls from config
// values, keeping defaults for unset fields.
func ProviderRetry(maxAttempts, backoffMs int) RetryConfig {
	cfg := DefaultRetryConfig()
	if maxAttempts > 0 {
		cfg.MaxAttempts = maxAttempts
	}
	if backoffMs > 0 {
		cfg.InitialBackoff = time.Duration(backoffMs) * time.Millisecond
	}
	return cfg
}

// ProviderBreaker builds the circuit breaker policy for provider calls from
// config values, keeping defaults for unset fields.
func ProviderBreaker(failureThreshold, resetSecs int) CircuitBreakerConfig {
	cfg := DefaultCircuitBreakerConfig()
	if failureThreshold > 0 {
		cfg.FailureThreshold = failureThreshold
	}
	if resetSecs > 0 {
		cfg.ResetTimeout = time.Duration(resetSecs) * time.Second
	}
	return cfg
}
