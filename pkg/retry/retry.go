// Package retry provides exponential backoff for store connection
// establishment.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/joyent/manta-mdshovel/pkg/errors"
)

// Config defines backoff behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Zero means retry until the context is canceled.
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`

	// InitialDelay is the delay before the first retry.
	InitialDelay time.Duration `yaml:"initial_delay" json:"initial_delay"`

	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`

	// Multiplier grows the delay after each retry.
	Multiplier float64 `yaml:"multiplier" json:"multiplier"`

	// Jitter randomizes delays to avoid thundering herd on reconnect.
	Jitter bool `yaml:"jitter" json:"jitter"`

	// RetryableErrors lists the error codes worth retrying. Empty means
	// retry everything.
	RetryableErrors []errors.ErrorCode `yaml:"retryable_errors" json:"-"`

	// OnRetry is called before each retry attempt.
	OnRetry func(attempt int, err error, delay time.Duration) `yaml:"-" json:"-"`
}

// DefaultConfig returns the backoff used for metadata-service connection
// recovery.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  5,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
		RetryableErrors: []errors.ErrorCode{
			errors.ErrCodeConnectionFailed,
			errors.ErrCodeSRVLookup,
			errors.ErrCodeNoBackends,
		},
	}
}

// Retryer executes functions with exponential backoff.
type Retryer struct {
	config Config
}

// New creates a Retryer, filling zero values with defaults.
func New(config Config) *Retryer {
	if config.InitialDelay <= 0 {
		config.InitialDelay = 100 * time.Millisecond
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	return &Retryer{config: config}
}

// Do executes fn with retry logic and context support.
func (r *Retryer) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; r.config.MaxAttempts <= 0 || attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.retryable(err) {
			return err
		}
		if r.config.MaxAttempts > 0 && attempt == r.config.MaxAttempts {
			break
		}

		delay := r.delay(attempt)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry canceled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retryer) retryable(err error) bool {
	if len(r.config.RetryableErrors) == 0 {
		return true
	}
	code := errors.CodeOf(err)
	for _, c := range r.config.RetryableErrors {
		if c == code {
			return true
		}
	}
	return false
}

func (r *Retryer) delay(attempt int) time.Duration {
	d := float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	if r.config.Jitter {
		// Up to 25% random spread below the computed delay.
		d -= d * 0.25 * rand.Float64()
	}
	return time.Duration(d)
}
