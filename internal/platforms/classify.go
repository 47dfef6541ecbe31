package platforms

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/bayonhq/ai-visibility-bot/internal/models"
)

// apiError carries an HTTP-like status from a platform adapter so vendor
// error shapes never leak past this package.
type apiError struct {
	platform string
	status   int
	body     string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("%s API returned status %d", e.platform, e.status)
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

// classify normalizes an adapter error into the shared failure taxonomy.
// Connection problems, timeouts and 5xx responses are retryable; auth
// failures, rate limits and other client errors are not.
func classify(platform string, err error) *models.Failure {
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewFailure(models.ErrTimeout, "%s query timed out", platform)
	}

	var apiErr *apiError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.status == 401 || apiErr.status == 403:
			return models.NewFailure(models.ErrAuthenticationFailed, "%s rejected credentials (status %d)", platform, apiErr.status)
		case apiErr.status == 429:
			return models.NewFailure(models.ErrRateLimitExceeded, "%s rate limit exceeded", platform)
		case apiErr.status >= 500:
			return models.NewFailure(models.ErrPlatformUnavailable, "%s server error (status %d)", platform, apiErr.status)
		case apiErr.status >= 400:
			return models.NewFailure(models.ErrUnknown, "%s client error (status %d)", platform, apiErr.status)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return models.NewFailure(models.ErrTimeout, "%s query timed out: %v", platform, err)
		}
		return models.NewFailure(models.ErrNetworkError, "%s unreachable: %v", platform, err)
	}

	return models.NewFailure(models.ErrNetworkError, "%s request failed: %v", platform, err)
}
