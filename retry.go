package llmwire

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

const (
	// DefaultMaxRetries is the default attempt budget per logical call.
	DefaultMaxRetries = 3

	// DefaultInitialDelay is the delay before the second attempt.
	DefaultInitialDelay = 1 * time.Second

	// backtraceFrames is how many frames verbose mode logs.
	backtraceFrames = 10
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// ContextSleep is the default SleepFunc.
func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier runs a provider call with classification-based retry.
//
// Attempts are counted per call to Do. After attempt n fails with a
// retryable error and n < MaxRetries, Do sleeps 2^(n-1) seconds (no
// jitter) and tries again. Validation and cast errors are returned
// unwrapped; every other failure is wrapped in *GenerationProviderError.
type Retrier struct {
	Provider ProviderID

	// MaxRetries is the maximum number of attempts. Zero means DefaultMaxRetries.
	MaxRetries int

	// Retryable is the allowlist of error values matched with errors.Is.
	// When empty, IsRetryable decides.
	Retryable []error

	// Sleep is injectable for tests. nil means ContextSleep.
	Sleep SleepFunc

	// Verbose prefixes surfaced errors with the original error type and
	// logs the first frames of the call stack at debug level.
	Verbose bool

	Logger zerolog.Logger
}

// NewRetrier returns a Retrier with defaults.
func NewRetrier(provider ProviderID, logger zerolog.Logger) *Retrier {
	return &Retrier{
		Provider:   provider,
		MaxRetries: DefaultMaxRetries,
		Sleep:      ContextSleep,
		Logger:     componentLogger(logger, "retry", provider),
	}
}

// newSchedule returns the 1s, 2s, 4s ... schedule capped at maxRetries-1 waits.
func newSchedule(maxRetries int) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultInitialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	waits := maxRetries - 1
	if waits < 0 {
		waits = 0
	}
	return backoff.WithMaxRetries(b, uint64(waits))
}

// ShouldRetry reports whether err matches the allowlist.
func (r *Retrier) ShouldRetry(err error) bool {
	if err == nil || IsInvalidRequest(err) || IsCastError(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if len(r.Retryable) == 0 {
		return IsRetryable(err)
	}
	for _, target := range r.Retryable {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	maxRetries := r.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}

	schedule := newSchedule(maxRetries)
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		if IsInvalidRequest(err) || IsCastError(err) {
			return err
		}

		if !r.ShouldRetry(err) {
			return r.surface(err, attempt)
		}

		wait := schedule.NextBackOff()
		if wait == backoff.Stop {
			return r.surface(err, attempt)
		}

		r.Logger.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_retries", maxRetries).
			Dur("delay", wait).
			Msg("retrying provider call")

		if sleepErr := sleep(ctx, wait); sleepErr != nil {
			return r.surface(err, attempt)
		}
	}
}

func (r *Retrier) surface(err error, attempts int) error {
	wrapped := wrapGenerationError(r.Provider, err, attempts, r.Verbose)
	if r.Verbose {
		frames := wrapped.Frames
		if len(frames) > backtraceFrames {
			frames = frames[:backtraceFrames]
		}
		backtrace := zerolog.Arr()
		for _, f := range frames {
			backtrace.Str(fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		}
		r.Logger.Debug().
			Str("error_class", wrapped.Class).
			Int("attempts", attempts).
			Array("backtrace", backtrace).
			Msg("provider call failed")
	}
	return wrapped
}
