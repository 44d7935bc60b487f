package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"igloader/pkg/config"
	errs "igloader/pkg/errors"
	"igloader/pkg/logger"
)

// Operation is a function that performs an operation that might need retrying
type Operation func() error

// OperationWithResult is a function that returns a result and might need retrying
type OperationWithResult[T any] func() (T, error)

// Policy holds retry configuration
type Policy struct {
	// MaxAttempts is the total number of attempts including the first (0 means unlimited)
	MaxAttempts int
	// Backoff is used for errors without a more specific strategy
	Backoff BackoffStrategy
	// ByType overrides Backoff for classified upstream errors
	ByType map[errs.ErrorType]BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(attempt int, err error, delay time.Duration)
	// Logger for retry attempts
	Logger logger.Logger
}

// DefaultPolicy returns a retry policy with sensible defaults
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts: 3,
		Backoff:     DefaultExponentialBackoff(),
		RetryIf:     DefaultRetryIf,
		Logger:      logger.NewNopLogger(),
	}
}

// FromConfig builds a policy from the retry section of the configuration.
// A disabled config yields a single-attempt policy.
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Policy {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if !cfg.Enabled {
		return &Policy{MaxAttempts: 1, Backoff: &ConstantBackoff{}, RetryIf: DefaultRetryIf, Logger: log}
	}

	backoff := &ExponentialBackoff{
		BaseDelay:    cfg.BaseDelay,
		MaxDelay:     cfg.MaxDelay,
		Multiplier:   cfg.Multiplier,
		JitterFactor: 0.1,
	}

	return &Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff:     backoff,
		ByType: map[errs.ErrorType]BackoffStrategy{
			// Rate limiting backs off harder than transport failures
			errs.ErrorTypeRateLimit: &ExponentialBackoff{
				BaseDelay:    2 * cfg.BaseDelay,
				MaxDelay:     cfg.MaxDelay,
				Multiplier:   cfg.Multiplier,
				JitterFactor: 0.3,
			},
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// DefaultRetryIf retries typed upstream errors that are marked retryable
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		return errs.IsRetryable(apiErr.Type)
	}

	return false
}

func (p *Policy) backoffFor(err error) BackoffStrategy {
	var apiErr *errs.Error
	if errors.As(err, &apiErr) {
		if b, ok := p.ByType[apiErr.Type]; ok {
			return b
		}
	}
	if p.Backoff == nil {
		return DefaultExponentialBackoff()
	}
	return p.Backoff
}

// Do executes an operation with retry logic
func Do(ctx context.Context, op Operation, p *Policy) error {
	if p == nil {
		p = DefaultPolicy()
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}
	log := p.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}

		if !retryIf(err) {
			return err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			log.ErrorWithFields("max retry attempts exceeded", map[string]interface{}{
				"attempts":   attempt,
				"last_error": err.Error(),
			})
			return fmt.Errorf("max retry attempts (%d) exceeded: %w", p.MaxAttempts, err)
		}

		delay := p.backoffFor(err).NextDelay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"error":        err.Error(),
			"delay_ms":     delay.Milliseconds(),
			"max_attempts": p.MaxAttempts,
		})

		if werr := Wait(ctx, delay); werr != nil {
			log.WarnWithFields("retry cancelled", map[string]interface{}{
				"attempt": attempt,
				"reason":  werr.Error(),
			})
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// DoWithResult executes an operation that returns a result with retry logic
func DoWithResult[T any](ctx context.Context, op OperationWithResult[T], p *Policy) (T, error) {
	var result T

	err := Do(ctx, func() error {
		var opErr error
		result, opErr = op()
		return opErr
	}, p)

	return result, err
}
