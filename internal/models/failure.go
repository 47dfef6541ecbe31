package models

import "fmt"

// ErrorCategory classifies a failure anywhere in the monitoring pipeline.
type ErrorCategory string

const (
	ErrPlatformUnavailable  ErrorCategory = "platform_unavailable"
	ErrRateLimitExceeded    ErrorCategory = "rate_limit_exceeded"
	ErrAuthenticationFailed ErrorCategory = "authentication_failed"
	ErrMissingAgentData     ErrorCategory = "missing_agent_data"
	ErrNoMentionsFound      ErrorCategory = "no_mentions_found"
	ErrStaleData            ErrorCategory = "stale_data"
	ErrNetworkError         ErrorCategory = "network_error"
	ErrTimeout              ErrorCategory = "timeout"
	ErrBudgetExceeded       ErrorCategory = "budget_exceeded"
	ErrInvalidConfiguration ErrorCategory = "invalid_configuration"
	ErrUnknown              ErrorCategory = "unknown"
)

// Failure is a normalized error carried across component boundaries. Platform
// adapters translate vendor-specific error shapes into a Failure so the retry
// logic and the scheduler stay vendor-agnostic.
type Failure struct {
	Category  ErrorCategory `json:"category"`
	Message   string        `json:"message"`
	Retryable bool          `json:"retryable"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s", f.Category, f.Message)
}

// NewFailure builds a Failure with the retryable flag implied by category.
func NewFailure(category ErrorCategory, format string, args ...interface{}) *Failure {
	return &Failure{
		Category:  category,
		Message:   fmt.Sprintf(format, args...),
		Retryable: categoryRetryable(category),
	}
}

func categoryRetryable(category ErrorCategory) bool {
	switch category {
	case ErrPlatformUnavailable, ErrNetworkError, ErrTimeout:
		return true
	default:
		return false
	}
}

// RemedialAction suggests the next step for a human operator.
func (f *Failure) RemedialAction() string {
	switch f.Category {
	case ErrPlatformUnavailable:
		return "The platform appears to be down; it will be retried on the next scheduled run."
	case ErrRateLimitExceeded:
		return "The platform rate limit was hit; reduce monitoring frequency or raise the plan limit."
	case ErrAuthenticationFailed:
		return "Check that the platform API key is present and has not expired."
	case ErrMissingAgentData:
		return "Complete the agent profile (name, location, specialties) for better query results."
	case ErrNoMentionsFound:
		return "No action needed; zero mentions is a valid result."
	case ErrStaleData:
		return "Trigger a manual run to refresh stale monitoring data."
	case ErrNetworkError:
		return "Check outbound network connectivity from the bot host."
	case ErrTimeout:
		return "The platform took too long to respond; it will be retried on the next run."
	case ErrBudgetExceeded:
		return "Raise the user's monthly budget or wait for the next billing period."
	case ErrInvalidConfiguration:
		return "Fix the user's monitoring configuration (at least one platform must be enabled)."
	default:
		return "Inspect the logs for details."
	}
}
