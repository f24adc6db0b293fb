// Package errkind defines the error-kind taxonomy surfaced to callers of the
// orchestration core, shared by every component that can fail.
package errkind

// Kind is a stable, caller-facing error classification.
type Kind string

const (
	InvalidRequest     Kind = "invalid_request"
	TemplateError      Kind = "template_error"
	ContextOverflow    Kind = "context_overflow"
	ProviderTimeout    Kind = "provider_timeout"
	ProviderRateLimited Kind = "provider_rate_limited"
	ProviderUnavailable Kind = "provider_unavailable"
	ProviderProtocol   Kind = "provider_protocol"
	ToolNotFound       Kind = "tool_not_found"
	InvalidArguments   Kind = "invalid_arguments"
	ToolTimeout        Kind = "tool_timeout"
	ToolExecution      Kind = "tool_execution"
	PartialToolLoop    Kind = "partial_tool_loop"
	CacheError         Kind = "cache_error"
	ClientGone         Kind = "client_gone"
	Auth               Kind = "auth"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	RateLimited        Kind = "rate_limited"
	Network            Kind = "network"
	Unknown            Kind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on retry.
// Mirrors the transient classes spec.md §4.8 names: timeout, 5xx/unavailable,
// rate limiting, connection reset (folded into Network).
func (k Kind) Retryable() bool {
	switch k {
	case ProviderTimeout, ProviderRateLimited, ProviderUnavailable, RateLimited, Network:
		return true
	default:
		return false
	}
}
