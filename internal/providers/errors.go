package providers

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/docassist/internal/errkind"
)

// ProviderError is a structured error from a provider call, carrying enough
// context for the orchestrator's retry and error-kind mapping decisions.
type ProviderError struct {
	Kind      errkind.Kind
	Provider  string
	Model     string
	Status    int
	Message   string
	RequestID string
	Cause     error
}

func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Provider, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error { return e.Cause }

// ClassifyError maps an arbitrary error (typically a go-openai SDK error or
// a transport error) onto this system's error-kind taxonomy, using the same
// substring-pattern approach the teacher's provider layer uses.
func ClassifyError(err error) errkind.Kind {
	if err == nil {
		return errkind.Unknown
	}
	errStr := strings.ToLower(err.Error())

	switch {
	case containsAny(errStr, "timeout", "deadline exceeded", "context deadline", "etimedout"):
		return errkind.ProviderTimeout
	case containsAny(errStr, "rate limit", "rate_limit", "too many requests", "429"):
		return errkind.ProviderRateLimited
	case containsAny(errStr, "unauthorized", "invalid api key", "invalid_api_key", "authentication", "401", "403"):
		return errkind.Auth
	case containsAny(errStr, "500", "502", "503", "504", "server error", "service unavailable"):
		return errkind.ProviderUnavailable
	case containsAny(errStr, "connection reset", "connection refused", "econnreset", "no such host"):
		return errkind.Network
	case containsAny(errStr, "invalid request", "bad request", "400"):
		return errkind.InvalidRequest
	default:
		return errkind.ProviderProtocol
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
