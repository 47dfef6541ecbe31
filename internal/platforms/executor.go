package platforms

import (
	"context"
	"time"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
	"github.com/sirupsen/logrus"
)

const maxAttempts = 3

// backoffDelay returns the wait after the given failed attempt (1-based):
// 2s, 4s, 8s.
func backoffDelay(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Executor makes one reliable attempt at a platform query, hiding transient
// failure behind classified retries.
type Executor struct {
	timeout time.Duration
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewExecutor creates an executor with the given per-attempt timeout.
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{
		timeout: timeout,
		sleep:   sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Query issues one logical query against a platform with up to three
// attempts. Retryable failures (network, timeout, 5xx) back off 2s then 4s
// between attempts; non-retryable failures (auth, rate limit, other 4xx)
// short-circuit immediately without waiting out a backoff delay.
func (e *Executor) Query(ctx context.Context, platform Platform, queryText string) (string, *models.Failure) {
	var lastFailure *models.Failure

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		response, err := platform.Ask(attemptCtx, queryText)
		cancel()

		if err == nil {
			return response, nil
		}

		lastFailure = classify(platform.Name(), err)
		if !lastFailure.Retryable {
			logrus.Warnf("Non-retryable failure from %s on attempt %d: %s (%s)",
				platform.Name(), attempt, lastFailure.Message, lastFailure.RemedialAction())
			return "", lastFailure
		}

		logrus.Warnf("Retryable failure from %s on attempt %d/%d: %s",
			platform.Name(), attempt, maxAttempts, lastFailure.Message)

		if attempt < maxAttempts {
			if err := e.sleep(ctx, backoffDelay(attempt)); err != nil {
				return "", models.NewFailure(models.ErrTimeout, "%s retry interrupted: %v", platform.Name(), err)
			}
		}
	}

	logrus.Errorf("Exhausted %d attempts against %s: %s", maxAttempts, platform.Name(), lastFailure.Message)
	return "", lastFailure
}
