package utils

import (
	"math"
	"time"
)

// BackoffStrategy yields successive wait windows.
type BackoffStrategy interface {
	// NextDelay returns the window for the given attempt number (0-indexed)
	NextDelay(attempt int) time.Duration
}

// ConstantBackoff always waits the same window.
type ConstantBackoff struct {
	Delay time.Duration
}

// NewConstantBackoff creates a new constant backoff strategy
func NewConstantBackoff(delay time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Delay: delay}
}

// NextDelay returns the constant delay
func (cb *ConstantBackoff) NextDelay(int) time.Duration {
	return cb.Delay
}

// LinearBackoff grows the window by BaseDelay per attempt up to MaxDelay.
type LinearBackoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// NewLinearBackoff creates a new linear backoff strategy
func NewLinearBackoff(baseDelay, maxDelay time.Duration) *LinearBackoff {
	return &LinearBackoff{BaseDelay: baseDelay, MaxDelay: maxDelay}
}

// NextDelay returns the linearly increasing delay
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	delay := lb.BaseDelay * time.Duration(attempt+1)
	if delay > lb.MaxDelay {
		return lb.MaxDelay
	}
	return delay
}

// ExponentialBackoff multiplies the window each attempt up to MaxDelay.
type ExponentialBackoff struct {
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
}

// NewExponentialBackoff creates a new exponential backoff strategy.
// Non-positive multipliers default to 1.5.
func NewExponentialBackoff(baseDelay, maxDelay time.Duration, multiplier float64) *ExponentialBackoff {
	if multiplier <= 0 {
		multiplier = 1.5
	}
	return &ExponentialBackoff{
		BaseDelay:  baseDelay,
		Multiplier: multiplier,
		MaxDelay:   maxDelay,
	}
}

// NextDelay returns the exponentially increasing delay
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}
	return time.Duration(delay)
}

// BackoffFromConfig builds the named strategy. Unknown or empty names
// select exponential growth. A zero max defaults to 30s.
func BackoffFromConfig(backoffType string, base, max time.Duration) BackoffStrategy {
	if max <= 0 {
		max = 30 * time.Second
	}
	if base > max {
		base = max
	}
	switch backoffType {
	case "constant":
		return NewConstantBackoff(base)
	case "linear":
		return NewLinearBackoff(base, max)
	default:
		return NewExponentialBackoff(base, max, 1.5)
	}
}
