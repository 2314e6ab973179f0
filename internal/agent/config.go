package agent

import "time"

// Default values for LoopConfig.
const (
	DefaultMaxIterations = 10
	DefaultTokenBudget   = 0 // 0 means unlimited.
	DefaultTimeout       = 5 * time.Minute
	DefaultLoopThreshold = 3
	DefaultMaxRetries    = 2
	DefaultRetryBackoff  = 500 * time.Millisecond
)

// LoopConfig controls the behavior of the agent loop.
type LoopConfig struct {
	// MaxIterations is the maximum number of provider-call cycles.
	// When reached, the loop terminates with the best available text
	// rather than an error.
	MaxIterations int

	// TokenBudget is the cumulative token limit (input + output).
	// Zero means unlimited.
	TokenBudget int

	// Timeout is the maximum wall-clock duration for the loop.
	Timeout time.Duration

	// LoopThreshold is how many times the same tool call (name + args)
	// can repeat before the loop is considered stuck.
	LoopThreshold int

	// MaxRetries bounds how many times a single provider call is
	// retried after a retryable error before the loop gives up.
	MaxRetries int

	// RetryBackoff is the base delay between provider retries. The
	// delay grows linearly with the attempt number.
	RetryBackoff time.Duration
}

// withDefaults returns a copy with zero fields replaced by defaults.
func (c LoopConfig) withDefaults() LoopConfig {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.LoopThreshold <= 0 {
		c.LoopThreshold = DefaultLoopThreshold
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	return c
}
