package provider

import "errors"

// Sentinel errors for provider operations.
var (
	// ErrRateLimit indicates the provider returned a rate limit response.
	ErrRateLimit = errors.New("provider rate limited")

	// ErrContextLength indicates the request exceeded the model's context window.
	ErrContextLength = errors.New("context length exceeded")

	// ErrProviderDown indicates the provider is temporarily unavailable.
	ErrProviderDown = errors.New("provider unavailable")

	// ErrNoProvider indicates no provider is configured.
	ErrNoProvider = errors.New("no provider configured")
)

// IsRetryable reports whether the error is transient and the request
// can be retried after a delay with the history unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderDown)
}

// IsRateLimit reports whether err is or wraps ErrRateLimit.
func IsRateLimit(err error) bool {
	return errors.Is(err, ErrRateLimit)
}

// SanitizeError maps a provider error to a message safe to show to a
// client. Known sentinels keep their descriptions; anything else is
// collapsed to a generic message so upstream error bodies, which may
// embed request headers or keys, never reach the user.
func SanitizeError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRateLimit):
		return "The model provider is rate limiting requests. Please try again shortly."
	case errors.Is(err, ErrContextLength):
		return "The conversation is too long for the model's context window."
	case errors.Is(err, ErrProviderDown):
		return "The model provider is temporarily unavailable."
	case errors.Is(err, ErrNoProvider):
		return "No model provider is configured."
	default:
		return "The model request failed."
	}
}
