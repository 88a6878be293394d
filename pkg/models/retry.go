package models

import "time"

// RetryPolicy controls how many times an action is attempted and how long the
// runtime backs off between attempts. Attempt 1 is not a retry.
type RetryPolicy struct {
	MaxAttempts            int         `json:"max_attempts"`
	InitialIntervalSeconds float64     `json:"initial_interval_seconds"`
	MaximumIntervalSeconds float64     `json:"maximum_interval_seconds"`
	BackoffCoefficient     float64     `json:"backoff_coefficient"`
	NonRetryableErrorKinds []ErrorKind `json:"non_retryable_error_kinds,omitempty"`
}

// DefaultRetryPolicy is applied to components that declare none.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:            1,
		InitialIntervalSeconds: 1,
		MaximumIntervalSeconds: 60,
		BackoffCoefficient:     2,
	}
}

// Normalized returns a copy with zero values replaced by sane defaults.
func (p RetryPolicy) Normalized() RetryPolicy {
	q := p
	if q.MaxAttempts < 1 {
		q.MaxAttempts = 1
	}

	if q.InitialIntervalSeconds <= 0 {
		q.InitialIntervalSeconds = 1
	}

	if q.BackoffCoefficient < 1 {
		q.BackoffCoefficient = 2
	}

	if q.MaximumIntervalSeconds <= 0 {
		q.MaximumIntervalSeconds = 60
	}

	if q.MaximumIntervalSeconds < q.InitialIntervalSeconds {
		q.MaximumIntervalSeconds = q.InitialIntervalSeconds
	}

	return q
}

// ShouldRetry reports whether another attempt is allowed after attempt
// (1-based) failed with the given error kind.
func (p RetryPolicy) ShouldRetry(attempt int, kind ErrorKind) bool {
	if attempt >= p.MaxAttempts {
		return false
	}

	for _, k := range p.NonRetryableErrorKinds {
		if k == kind {
			return false
		}
	}

	if len(p.NonRetryableErrorKinds) == 0 {
		return kind.Retryable()
	}

	return true
}

// BackoffInterval returns the delay before the given attempt (2-based: the
// delay preceding attempt n), exponential and clamped to the maximum.
func (p RetryPolicy) BackoffInterval(attempt int) time.Duration {
	interval := p.InitialIntervalSeconds
	for i := 2; i < attempt; i++ {
		interval *= p.BackoffCoefficient
		if interval >= p.MaximumIntervalSeconds {
			interval = p.MaximumIntervalSeconds

			break
		}
	}

	if interval > p.MaximumIntervalSeconds {
		interval = p.MaximumIntervalSeconds
	}

	return time.Duration(interval * float64(time.Second))
}
