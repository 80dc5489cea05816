package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

var errRateLimited = errors.New("client rate limit exceeded")

// response is a completed HTTP exchange. 4xx responses are returned as
// values so the breaker only counts transport and server failures.
type response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// ResilienceConfig selects which fortify patterns wrap backend calls.
type ResilienceConfig struct {
	EnableCircuitBreaker bool
	EnableBulkhead       bool
	EnableRateLimit      bool

	// EnableRetry retries idempotent reads only. Writes and generation
	// requests are never retried.
	EnableRetry bool

	MaxConcurrent int
	RatePerSecond int
	Logger        *slog.Logger
}

// DefaultResilienceConfig returns the defaults used by the CLI.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		EnableCircuitBreaker: true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		EnableRetry:          false,
		MaxConcurrent:        4,
		RatePerSecond:        5,
	}
}

// executor runs HTTP exchanges through the configured patterns.
type executor struct {
	circuitBreaker circuitbreaker.CircuitBreaker[*response]
	retrier        retry.Retry[*response]
	bulkhead       bulkhead.Bulkhead[*response]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

func newExecutor(cfg ResilienceConfig) *executor {
	ex := &executor{logger: cfg.Logger}
	if ex.logger == nil {
		ex.logger = slog.Default()
	}

	if cfg.EnableCircuitBreaker {
		ex.circuitBreaker = circuitbreaker.New[*response](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     20 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				ex.logger.Warn("practice api circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		ex.retrier = retry.New[*response](retry.Config{
			MaxAttempts:   3,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      5 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 4
		}
		ex.bulkhead = bulkhead.New[*response](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  30 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 5
		}
		ex.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return ex
}

// execute runs fn for operation op. idempotent enables retry.
func (e *executor) execute(ctx context.Context, op string, idempotent bool, fn func(context.Context) (*response, error)) (*response, error) {
	if e.rateLimit != nil && !e.rateLimit.Allow(ctx, op) {
		return nil, fmt.Errorf("%s: %w", op, errRateLimited)
	}

	operation := fn
	if e.bulkhead != nil {
		operation = func(ctx context.Context) (*response, error) {
			return e.bulkhead.Execute(ctx, fn)
		}
	}

	if e.retrier != nil && idempotent {
		inner := operation
		operation = func(ctx context.Context) (*response, error) {
			return e.retrier.Do(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		return e.circuitBreaker.Execute(ctx, operation)
	}
	return operation(ctx)
}

func (e *executor) close() error {
	if e.rateLimit != nil {
		return e.rateLimit.Close()
	}
	return nil
}
