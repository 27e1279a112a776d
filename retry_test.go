package llmwire

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleep records requested delays without waiting.
type recordingSleep struct {
	delays []time.Duration
	err    error
}

func (s *recordingSleep) sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return s.err
}

func rateLimited() error {
	return &ProviderError{Provider: ProviderOpenAI, StatusCode: 429, Message: "slow down", Retryable: true, Err: ErrRateLimited}
}

func TestRetrierBackoffSchedule(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		wantCalls  int
		wantDelays []time.Duration
	}{
		{"default budget", 0, 3, []time.Duration{time.Second, 2 * time.Second}},
		{"single attempt", 1, 1, nil},
		{"four attempts", 4, 4, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &recordingSleep{}
			r := NewRetrier(ProviderOpenAI, testLogger(t))
			r.MaxRetries = tt.maxRetries
			r.Sleep = sleeper.sleep

			calls := 0
			err := r.Do(context.Background(), func(context.Context) error {
				calls++
				return rateLimited()
			})

			var gerr *GenerationProviderError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Equal(t, tt.wantCalls, gerr.Attempts)
			assert.Equal(t, tt.wantDelays, sleeper.delays)
			assert.ErrorIs(t, err, ErrRateLimited)
			assert.Equal(t, ProviderOpenAI, gerr.Provider)
		})
	}
}

func TestRetrierSucceedsAfterTransientFailure(t *testing.T) {
	sleeper := &recordingSleep{}
	r := NewRetrier(ProviderAnthropic, testLogger(t))
	r.Sleep = sleeper.sleep

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return rateLimited()
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, sleeper.delays)
}

func TestRetrierDoesNotRetry(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wrapped bool
	}{
		{"validation error", &ValidationError{Field: "temperature"}, false},
		{"cast error", &CastError{Kind: "content"}, false},
		{"unsupported feature", &ValidationError{Field: "tool_choice", Err: ErrUnsupportedFeature}, false},
		{"auth failure", &ProviderError{StatusCode: 401, Message: "bad key", Err: ErrInvalidAPIKey}, true},
		{"plain error", errors.New("boom"), true},
		{"cancelled", context.Canceled, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sleeper := &recordingSleep{}
			r := NewRetrier(ProviderOpenAI, testLogger(t))
			r.Sleep = sleeper.sleep

			calls := 0
			err := r.Do(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			})

			assert.Equal(t, 1, calls)
			assert.Empty(t, sleeper.delays)
			assert.ErrorIs(t, err, tt.err)

			var gerr *GenerationProviderError
			assert.Equal(t, tt.wrapped, errors.As(err, &gerr))
		})
	}
}

func TestRetrierAllowlist(t *testing.T) {
	flaky := errors.New("flaky")
	sleeper := &recordingSleep{}
	r := NewRetrier(ProviderOllama, testLogger(t))
	r.Sleep = sleeper.sleep
	r.Retryable = []error{flaky}

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return flaky
	})
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, flaky)

	calls = 0
	err = r.Do(context.Background(), func(context.Context) error {
		calls++
		return rateLimited()
	})
	assert.Equal(t, 1, calls, "errors outside the allowlist are not retried")
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestRetrierStopsWhenSleepFails(t *testing.T) {
	sleeper := &recordingSleep{err: context.Canceled}
	r := NewRetrier(ProviderOpenAI, testLogger(t))
	r.Sleep = sleeper.sleep

	calls := 0
	err := r.Do(context.Background(), func(context.Context) error {
		calls++
		return rateLimited()
	})

	var gerr *GenerationProviderError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, gerr.Attempts)
}

func TestContextSleep(t *testing.T) {
	assert.NoError(t, ContextSleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ContextSleep(ctx, time.Hour), context.Canceled)
}

func TestGenerationProviderErrorVerbose(t *testing.T) {
	cause := rateLimited()

	quiet := wrapGenerationError(ProviderOpenAI, cause, 3, false)
	assert.Equal(t, cause.Error(), quiet.Error())
	assert.Equal(t, "*llmwire.ProviderError", quiet.Class)
	assert.NotEmpty(t, quiet.Frames)

	loud := wrapGenerationError(ProviderOpenAI, cause, 3, true)
	assert.Equal(t, "*llmwire.ProviderError: "+cause.Error(), loud.Error())

	assert.Same(t, loud, wrapGenerationError(ProviderOpenAI, loud, 1, false), "already wrapped errors are kept")
}

func TestVerboseRetrierLogsBacktrace(t *testing.T) {
	logs := &bytes.Buffer{}
	r := NewRetrier(ProviderOpenAI, NewLogger("debug", logs, false))
	r.Verbose = true
	r.MaxRetries = 1

	err := r.Do(context.Background(), func(context.Context) error { return errors.New("boom") })
	assert.EqualError(t, err, "*errors.errorString: boom")
	assert.Contains(t, logs.String(), `"backtrace"`)
	assert.Contains(t, logs.String(), `"error_class":"*errors.errorString"`)
}

func TestErrorClassifiers(t *testing.T) {
	assert.True(t, IsRetryable(rateLimited()))
	assert.True(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(&ProviderError{StatusCode: 400, Err: ErrInvalidRequest}))
	assert.False(t, IsRetryable(nil))

	assert.True(t, IsAuthError(&ProviderError{StatusCode: 403}))
	assert.True(t, IsAuthError(ErrInvalidAPIKey))
	assert.False(t, IsAuthError(rateLimited()))

	assert.True(t, IsInvalidRequest(ErrUnsupportedFeature))
	assert.False(t, IsInvalidRequest(nil))
	assert.False(t, IsCastError(ErrCast), "the bare sentinel carries no cast detail")

	assert.Equal(t, "provider 'openai' error (status 429): slow down", rateLimited().Error())
	assert.Equal(t, "provider 'ollama' error: refused", (&ProviderError{Provider: ProviderOllama, Message: "refused"}).Error())
	assert.Equal(t, "anthropic: cannot cast content (video): unknown content type",
		(&CastError{Kind: "content", Value: "video", Reason: "unknown content type", Provider: ProviderAnthropic}).Error())
}
