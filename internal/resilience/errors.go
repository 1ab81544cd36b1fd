package resilience

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry, optionally carrying the
// HTTP status that produced it.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as transient. statusCode may be zero when the
// failure was not an HTTP response.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// upstreamStatusRe matches the status line every API client wraps into its
// errors, e.g. "perplexity: unexpected status 503: upstream timeout".
var upstreamStatusRe = regexp.MustCompile(`unexpected status (\d{3})`)

// modelAPIPatterns are throttling and overload shapes the model gateways
// report in the response body rather than as a distinct status.
var modelAPIPatterns = []string{
	"overloaded_error",
	"rate_limit_error",
	"rate limit exceeded",
	"quota exceeded",
}

// networkPatterns cover transport failures that only surface as wrapped
// message strings.
var networkPatterns = []string{
	"connection reset by peer",
	"broken pipe",
	"temporary failure in name resolution",
	"no such host",
	"tls handshake timeout",
	"i/o timeout",
	"server closed idle connection",
	"transport connection broken",
}

// IsTransient reports whether a failed provider or market-data call is worth
// retrying: an explicit TransientError, a network timeout or reset, a
// retryable HTTP status embedded in a client error, or a model-gateway
// overload message. Malformed appraisal output is never transient; the
// provider would return the same JSON again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())

	// The perplexity, openrouter, pricecharting and ebay clients all wrap
	// non-200 responses as "<service>: unexpected status <code>: <body>".
	if m := upstreamStatusRe.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		return IsTransientHTTPStatus(code)
	}

	for _, p := range modelAPIPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	for _, p := range networkPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether an HTTP status from an upstream API
// is safe to retry. 529 is the Anthropic overloaded status.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504, // Gateway Timeout
		529: // Overloaded
		return true
	default:
		return false
	}
}
