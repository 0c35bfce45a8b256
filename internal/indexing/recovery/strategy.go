// Package recovery retries transient failures of calls outside the batch
// loop, such as order API lookups. Provider capacity errors are not retried
// here; the batch controller handles those by shrinking.
package recovery

import (
	"math"
	"time"
)

// FailureCategory tells whether an error is worth retrying.
type FailureCategory int

const (
	CategoryPermanent FailureCategory = iota
	CategoryTransient
)

// Classifier maps an error to a FailureCategory.
type Classifier func(err error) FailureCategory

// RetryStrategy defines how retries should be handled.
type RetryStrategy interface {
	// GetDelay returns the delay for the given attempt (0-indexed).
	GetDelay(attempt int) time.Duration

	// ShouldRetry checks if we should retry based on the error and attempt count.
	ShouldRetry(err error, attempt int) bool
}

// ExponentialBackoff implements a standard backoff strategy.
type ExponentialBackoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
	Classifier   Classifier
}

// DefaultBackoff returns the defaults used for order API calls:
// 500ms, 1s, 2s (max 10s).
func DefaultBackoff(classifier Classifier) *ExponentialBackoff {
	if classifier == nil {
		classifier = func(err error) FailureCategory {
			return CategoryTransient
		}
	}
	return &ExponentialBackoff{
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     10 * time.Second,
		MaxAttempts:  3,
		Classifier:   classifier,
	}
}

// GetDelay calculates delay: InitialDelay * 2^attempt
func (s *ExponentialBackoff) GetDelay(attempt int) time.Duration {
	delay := float64(s.InitialDelay) * math.Pow(2, float64(attempt))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}
	return time.Duration(delay)
}

// ShouldRetry checks if error is transient and max attempts not exceeded.
func (s *ExponentialBackoff) ShouldRetry(err error, attempt int) bool {
	if attempt >= s.MaxAttempts {
		return false
	}
	return s.Classifier(err) == CategoryTransient
}
