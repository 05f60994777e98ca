package sdk

import "time"

// Client defaults.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 250 * time.Millisecond
)

type options struct {
	timeout      time.Duration
	maxAttempts  int
	initialDelay time.Duration
}

func defaultOptions() options {
	return options{
		timeout:      DefaultTimeout,
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
	}
}

// Option configures the SDK client.
type Option func(*options)

// WithTimeout bounds every request, including the initialize handshake.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetry sets how often a failed transport call is attempted and the
// first backoff delay, which doubles per attempt. Only transport failures
// and ErrRateLimited answers are retried.
func WithRetry(maxAttempts int, initialDelay time.Duration) Option {
	return func(o *options) {
		if maxAttempts > 0 {
			o.maxAttempts = maxAttempts
		}
		if initialDelay > 0 {
			o.initialDelay = initialDelay
		}
	}
}
