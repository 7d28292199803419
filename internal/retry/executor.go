package retry

import (
	"context"
	"log/slog"
	"time"

	"nugget-extractor/internal/llmerr"
)

const (
	// DefaultMaxAttempts bounds the retry loop, first attempt included.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the sleep before the second attempt; it doubles
	// after each further failure.
	DefaultBaseDelay = 1 * time.Second
)

// Executor wraps provider calls in a bounded exponential-backoff loop.
// Only failures the classifier marks retryable are retried; credential and
// request-shape errors surface immediately.
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration

	log *slog.Logger

	// sleep is swappable so tests can observe delays without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewExecutor builds an executor with the default bounds. Pass nil to use
// slog.Default().
func NewExecutor(log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{
		MaxAttempts: DefaultMaxAttempts,
		BaseDelay:   DefaultBaseDelay,
		log:         log,
		sleep:       sleepCtx,
	}
}

// Do runs fn until it succeeds, fails terminally, or exhausts the attempt
// cap. The returned error is always enhanced (see llmerr.Enhance). The
// attempt count makes the loop's behavior observable.
func Do[T any](ctx context.Context, e *Executor, fn func(ctx context.Context) (T, error)) (result T, attempts int, err error) {
	var zero T
	for attempt := 1; attempt <= e.MaxAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, attempt - 1, ctxErr
		}

		res, callErr := fn(ctx)
		if callErr == nil {
			return res, attempt, nil
		}

		enhanced := llmerr.Enhance(callErr)
		if !enhanced.Kind.Retryable() {
			e.log.Warn("extraction failed, not retrying",
				"kind", enhanced.Kind.String(), "attempt", attempt)
			return zero, attempt, enhanced
		}
		if attempt == e.MaxAttempts {
			e.log.Warn("extraction failed, attempts exhausted",
				"kind", enhanced.Kind.String(), "attempts", attempt)
			return zero, attempt, enhanced
		}

		delay := ExponentialBackoff(attempt-1, e.BaseDelay)
		e.log.Info("retrying after transient failure",
			"kind", enhanced.Kind.String(), "attempt", attempt, "delay", delay)
		if sleepErr := e.sleep(ctx, delay); sleepErr != nil {
			return zero, attempt, sleepErr
		}
	}
	// Unreachable: the loop always returns from inside.
	return zero, e.MaxAttempts, nil
}

// sleepCtx waits for d or for ctx cancellation, whichever comes first. The
// timer is stopped either way so an abandoned retry sequence leaks nothing.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
