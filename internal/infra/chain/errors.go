package chain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// CodeLimitExceeded is the JSON-RPC error code providers use for oversized requests.
const CodeLimitExceeded = -32005

// ProviderError describes a failed call to the RPC provider.
type ProviderError struct {
	Op         string // RPC method
	Code       int    // JSON-RPC error code, 0 when absent
	Message    string
	Data       string // JSON-RPC error data or HTTP response body
	HTTPStatus int    // 0 when the failure did not come from an HTTP status
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.HTTPStatus != 0 {
		fmt.Fprintf(&b, "http %d: ", e.HTTPStatus)
	}
	if e.Code != 0 {
		fmt.Fprintf(&b, "code %d: ", e.Code)
	}
	b.WriteString(e.Message)
	if e.Data != "" {
		b.WriteString(" (")
		b.WriteString(e.Data)
		b.WriteString(")")
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// CapacityClassifier decides whether an error means the requested block
// range was too large for the provider.
type CapacityClassifier func(err error) bool

var capacityPatterns = []string{
	"too many",
	"batch",
	"limit",
	"exceeded",
	"rate limit",
	"timeout",
	"more than",
	"invalid params",
	"block range",
	"range too large",
	"response size",
}

// DefaultCapacityClassifier matches the error text and, for a *ProviderError,
// its code, data and HTTP status against known capacity signals.
func DefaultCapacityClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	text := err.Error()

	var pe *ProviderError
	if errors.As(err, &pe) {
		if pe.Code == CodeLimitExceeded {
			return true
		}
		switch pe.HTTPStatus {
		case http.StatusRequestEntityTooLarge, http.StatusTooManyRequests:
			return true
		}
		text += " " + pe.Message + " " + pe.Data
	}

	return matchesAny(strings.ToLower(text), capacityPatterns)
}

// IsCapacityError reports whether err is a capacity error under the default rule.
func IsCapacityError(err error) bool {
	return DefaultCapacityClassifier(err)
}

// IsThrottle reports whether the provider rejected the call for request rate
// rather than request size.
func IsThrottle(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) && pe.HTTPStatus == http.StatusTooManyRequests {
		return true
	}
	return err != nil && matchesAny(strings.ToLower(err.Error()), []string{
		"rate limit",
		"too many requests",
		"daily request count exceeded",
		"project rate limit",
		"monthly quota exceeded",
	})
}

func matchesAny(text string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}
