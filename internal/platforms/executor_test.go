package platforms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedPlatform returns its scripted errors in order, then succeeds.
type scriptedPlatform struct {
	name     string
	errs     []error
	response string
	attempts int
}

func (p *scriptedPlatform) Name() string              { return p.name }
func (p *scriptedPlatform) UnitCostMillicents() int64 { return 100 }
func (p *scriptedPlatform) IsEnabled() bool           { return true }

func (p *scriptedPlatform) Ask(ctx context.Context, prompt string) (string, error) {
	p.attempts++
	if p.attempts <= len(p.errs) {
		return "", p.errs[p.attempts-1]
	}
	return p.response, nil
}

// newFakeExecutor swaps the real backoff sleep for a recorder so retry tests
// run instantly.
func newFakeExecutor() (*Executor, *[]time.Duration) {
	delays := &[]time.Duration{}
	executor := NewExecutor(time.Second)
	executor.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return executor, delays
}

func TestQuery_SucceedsFirstAttempt(t *testing.T) {
	executor, delays := newFakeExecutor()
	platform := &scriptedPlatform{name: "chatgpt", response: "hello"}

	response, failure := executor.Query(context.Background(), platform, "who is the best agent")

	require.Nil(t, failure)
	assert.Equal(t, "hello", response)
	assert.Equal(t, 1, platform.attempts)
	assert.Empty(t, *delays)
}

func TestQuery_RetriesServerErrorsWithBackoff(t *testing.T) {
	executor, delays := newFakeExecutor()
	platform := &scriptedPlatform{
		name: "chatgpt",
		errs: []error{
			&apiError{platform: "chatgpt", status: 500},
			&apiError{platform: "chatgpt", status: 503},
		},
		response: "recovered",
	}

	response, failure := executor.Query(context.Background(), platform, "q")

	require.Nil(t, failure)
	assert.Equal(t, "recovered", response)
	assert.Equal(t, 3, platform.attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestQuery_ExhaustsThreeAttempts(t *testing.T) {
	executor, delays := newFakeExecutor()
	platform := &scriptedPlatform{
		name: "perplexity",
		errs: []error{
			&apiError{platform: "perplexity", status: 500},
			&apiError{platform: "perplexity", status: 500},
			&apiError{platform: "perplexity", status: 500},
		},
	}

	_, failure := executor.Query(context.Background(), platform, "q")

	require.NotNil(t, failure)
	assert.Equal(t, models.ErrPlatformUnavailable, failure.Category)
	assert.True(t, failure.Retryable)
	assert.Equal(t, 3, platform.attempts)
	// Only two waits between three attempts, never one after the last.
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
}

func TestQuery_NonRetryableShortCircuits(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantCategory models.ErrorCategory
	}{
		{"unauthorized", 401, models.ErrAuthenticationFailed},
		{"forbidden", 403, models.ErrAuthenticationFailed},
		{"rate limited", 429, models.ErrRateLimitExceeded},
		{"bad request", 400, models.ErrUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor, delays := newFakeExecutor()
			platform := &scriptedPlatform{
				name: "claude",
				errs: []error{
					&apiError{platform: "claude", status: tt.status},
					&apiError{platform: "claude", status: tt.status},
				},
			}

			_, failure := executor.Query(context.Background(), platform, "q")

			require.NotNil(t, failure)
			assert.Equal(t, tt.wantCategory, failure.Category)
			assert.False(t, failure.Retryable)
			assert.Equal(t, 1, platform.attempts, "must not retry")
			assert.Empty(t, *delays, "must not wait out a backoff")
		})
	}
}

func TestQuery_DeadlineClassifiedAsTimeout(t *testing.T) {
	executor, _ := newFakeExecutor()
	platform := &scriptedPlatform{
		name: "gemini",
		errs: []error{
			context.DeadlineExceeded,
			context.DeadlineExceeded,
			context.DeadlineExceeded,
		},
	}

	_, failure := executor.Query(context.Background(), platform, "q")

	require.NotNil(t, failure)
	assert.Equal(t, models.ErrTimeout, failure.Category)
	assert.True(t, failure.Retryable)
	assert.Equal(t, 3, platform.attempts)
}

func TestQuery_CancelledBackoffAborts(t *testing.T) {
	executor := NewExecutor(time.Second)
	executor.sleep = func(ctx context.Context, d time.Duration) error {
		return context.Canceled
	}
	platform := &scriptedPlatform{
		name: "chatgpt",
		errs: []error{&apiError{platform: "chatgpt", status: 500}},
	}

	_, failure := executor.Query(context.Background(), platform, "q")

	require.NotNil(t, failure)
	assert.Equal(t, models.ErrTimeout, failure.Category)
	assert.Equal(t, 1, platform.attempts)
}

func TestClassify_GenericErrorIsRetryableNetworkFailure(t *testing.T) {
	failure := classify("chatgpt", errors.New("connection reset by peer"))

	assert.Equal(t, models.ErrNetworkError, failure.Category)
	assert.True(t, failure.Retryable)
}

func TestBackoffDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, backoffDelay(1))
	assert.Equal(t, 4*time.Second, backoffDelay(2))
}
