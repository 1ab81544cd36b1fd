package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"explicit transient", NewTransientError(errors.New("overloaded"), 503), true},
		{"wrapped transient", fmt.Errorf("appraise item: %w", NewTransientError(errors.New("throttled"), 429)), true},
		{"upstream 503", eris.New("perplexity: unexpected status 503: upstream timeout"), true},
		{"upstream 429", eris.New("openrouter: unexpected status 429: slow down"), true},
		{"upstream 529", eris.New("pricecharting: unexpected status 529: overloaded"), true},
		{"upstream 402 is permanent", eris.New("openrouter: unexpected status 402: payment required"), false},
		{"upstream 401 is permanent", eris.New("ebay: unexpected status 401: invalid access token"), false},
		{"anthropic overload body", eris.New(`anthropic: create message: {"type":"error","error":{"type":"overloaded_error"}}`), true},
		{"anthropic rate limit body", eris.New(`anthropic: create message: {"type":"error","error":{"type":"rate_limit_error"}}`), true},
		{"connection reset", fmt.Errorf("write tcp: %w", syscall.ECONNRESET), true},
		{"connection refused", fmt.Errorf("dial tcp: %w", syscall.ECONNREFUSED), true},
		{"dns timeout", &net.DNSError{IsTimeout: true, Err: "lookup timed out"}, true},
		{"tls handshake timeout", errors.New("TLS handshake timeout"), true},
		{"malformed appraisal output", eris.New("provider: parse appraisal: invalid character 'I'"), false},
		{"validation failure", eris.New("provider: appraisal confidence out of range"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504, 529} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 201, 400, 401, 402, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("socket closed")
	te := NewTransientError(inner, 502)

	assert.ErrorIs(t, te, inner)
	assert.Equal(t, 502, te.StatusCode)
	assert.Equal(t, "socket closed", te.Error())
}
