package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	assert.Equal(t, 1*time.Second, config.InitialDelay)
	assert.Equal(t, 5*time.Second, config.MaxDelay)
	assert.Equal(t, 2.0, config.Multiplier)
}

func TestRetryConfigDelay(t *testing.T) {
	config := DefaultRetryConfig()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{-1, 1 * time.Second},
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 5 * time.Second},
		{10, 5 * time.Second},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, config.Delay(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		name      string
		attempt   int
		baseDelay time.Duration
		maxDelay  time.Duration
		expected  time.Duration
	}{
		{
			name:      "attempt 0 returns base delay",
			attempt:   0,
			baseDelay: 30 * time.Second,
			maxDelay:  32 * time.Second,
			expected:  30 * time.Second,
		},
		{
			name:      "attempt 1 returns base delay",
			attempt:   1,
			baseDelay: 100 * time.Millisecond,
			maxDelay:  10 * time.Second,
			expected:  100 * time.Millisecond,
		},
		{
			name:      "attempt 3 returns 4x base delay",
			attempt:   3,
			baseDelay: 100 * time.Millisecond,
			maxDelay:  10 * time.Second,
			expected:  400 * time.Millisecond,
		},
		{
			name:      "caps at max delay",
			attempt:   2,
			baseDelay: 30 * time.Second,
			maxDelay:  32 * time.Second,
			expected:  32 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExponentialBackoff(tt.attempt, tt.baseDelay, tt.maxDelay))
		})
	}
}
