package llm

import "time"

// RetryConfig holds retry configuration for LLM requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts per endpoint.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig matches the judge defaults: two retries after the first attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		BackoffBase:       time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        10 * time.Second,
	}
}

// RetryConfigFor builds a config allowing retries extra attempts.
func RetryConfigFor(retries int) RetryConfig {
	cfg := DefaultRetryConfig()
	if retries < 0 {
		retries = 0
	}
	cfg.MaxAttempts = retries + 1
	return cfg
}
