package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy_Normalized(t *testing.T) {
	p := RetryPolicy{}.Normalized()

	assert.Equal(t, 1, p.MaxAttempts)
	assert.Equal(t, float64(1), p.InitialIntervalSeconds)
	assert.Equal(t, float64(60), p.MaximumIntervalSeconds)
	assert.Equal(t, float64(2), p.BackoffCoefficient)
}

func TestRetryPolicy_NormalizedClampsMaximum(t *testing.T) {
	p := RetryPolicy{InitialIntervalSeconds: 10, MaximumIntervalSeconds: 5}.Normalized()
	assert.Equal(t, float64(10), p.MaximumIntervalSeconds)
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3}

	tests := []struct {
		name    string
		attempt int
		kind    ErrorKind
		want    bool
	}{
		{"service error retries", 1, KindService, true},
		{"container error retries", 2, KindContainer, true},
		{"timeout retries", 1, KindTimeout, true},
		{"validation never retries", 1, KindValidation, false},
		{"configuration never retries", 1, KindConfiguration, false},
		{"internal never retries by default", 1, KindInternal, false},
		{"attempts exhausted", 3, KindService, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ShouldRetry(tt.attempt, tt.kind))
		})
	}
}

func TestRetryPolicy_ExplicitNonRetryableList(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:            3,
		NonRetryableErrorKinds: []ErrorKind{KindService},
	}

	// With an explicit list the default kind filter no longer applies.
	assert.False(t, policy.ShouldRetry(1, KindService))
	assert.True(t, policy.ShouldRetry(1, KindInternal))
}

func TestRetryPolicy_BackoffInterval(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:            5,
		InitialIntervalSeconds: 1,
		MaximumIntervalSeconds: 5,
		BackoffCoefficient:     2,
	}

	assert.Equal(t, 1*time.Second, policy.BackoffInterval(2))
	assert.Equal(t, 2*time.Second, policy.BackoffInterval(3))
	assert.Equal(t, 4*time.Second, policy.BackoffInterval(4))
	assert.Equal(t, 5*time.Second, policy.BackoffInterval(5))
	assert.Equal(t, 5*time.Second, policy.BackoffInterval(6))
}
