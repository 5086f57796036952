package model

import (
	"errors"
	"fmt"
)

// ProviderErrorKind classifies a provider failure into one of the coarse
// categories the Agent Executor (C4) and Handoff/Routing (C13) need to make
// retry and fallback decisions, without coupling to any one provider's error
// types.
type ProviderErrorKind string

const (
	// ErrContextLengthExceeded means the request exceeded the model's
	// context window. Not retryable without compaction.
	ErrContextLengthExceeded ProviderErrorKind = "context_length_exceeded"
	// ErrRateLimited means the provider is throttling requests.
	ErrRateLimited ProviderErrorKind = "rate_limited"
	// ErrQuotaExhausted means the caller's quota/budget has been consumed.
	ErrQuotaExhausted ProviderErrorKind = "quota_exhausted"
	// ErrEndpointUnreachable means the provider endpoint could not be
	// reached (DNS, connection refused, network partition).
	ErrEndpointUnreachable ProviderErrorKind = "endpoint_unreachable"
	// ErrTimeout means the call exceeded its deadline.
	ErrTimeout ProviderErrorKind = "timeout"
	// ErrServer means the provider returned a 5xx-class failure.
	ErrServer ProviderErrorKind = "server_error"
	// ErrOther is an unclassified provider failure.
	ErrOther ProviderErrorKind = "other"
)

// fallbackWorthy holds the kinds for which Handoff/Routing (C13) should
// attempt to switch to the next provider in the fallback chain rather than
// surface the failure directly.
var fallbackWorthy = map[ProviderErrorKind]bool{
	ErrQuotaExhausted:      true,
	ErrRateLimited:         true,
	ErrEndpointUnreachable: true,
	ErrTimeout:             true,
	ErrServer:              true,
}

// ProviderError describes a failure returned by a model provider. It
// crosses package boundaries (provider adapters -> executor -> handoff) so
// callers can make structured decisions without parsing error strings.
type ProviderError struct {
	Provider  string
	Operation string
	Kind      ProviderErrorKind
	// Reason is a stable, caller-safe description recorded on the Task by
	// the Result Manager. It must never contain provider request payloads
	// or secrets.
	Reason string
	cause  error
}

// NewProviderError constructs a ProviderError. provider and kind are
// required; cause may be nil.
func NewProviderError(provider, operation string, kind ProviderErrorKind, reason string, cause error) *ProviderError {
	if provider == "" {
		panic("model: provider is required")
	}
	if kind == "" {
		panic("model: provider error kind is required")
	}
	return &ProviderError{Provider: provider, Operation: operation, Kind: kind, Reason: reason, cause: cause}
}

func (e *ProviderError) Error() string {
	op := e.Operation
	if op == "" {
		op = "complete"
	}
	reason := e.Reason
	if reason == "" && e.cause != nil {
		reason = e.cause.Error()
	}
	if reason == "" {
		reason = "provider error"
	}
	return fmt.Sprintf("%s %s(%s): %s", e.Provider, e.Kind, op, reason)
}

// Unwrap preserves the original error chain.
func (e *ProviderError) Unwrap() error { return e.cause }

// FallbackWorthy reports whether this failure should trigger the C13
// provider fallback chain rather than being surfaced directly.
func (e *ProviderError) FallbackWorthy() bool { return fallbackWorthy[e.Kind] }

// AsProviderError returns the first ProviderError in err's chain, if any.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
