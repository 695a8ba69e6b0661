package core

import (
	"errors"
	"fmt"
)

var (
	ErrCacheMiss        = errors.New("cache miss")
	ErrCacheCorrupt     = errors.New("cache entry corrupt")
	ErrUnknownExecution = errors.New("unknown execution")
	ErrInvalidOverride  = errors.New("invalid override")
)

// UnknownAgentError is returned when an agent id is not registered
type UnknownAgentError struct {
	AgentID string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent %q", e.AgentID)
}

// InvocationKind classifies model invocation failures
type InvocationKind string

const (
	InvocationTimeout       InvocationKind = "timeout"
	InvocationCanceled      InvocationKind = "canceled"
	InvocationRateLimited   InvocationKind = "rate_limited"
	InvocationProviderError InvocationKind = "provider_error"
	InvocationEmptyResponse InvocationKind = "empty_response"
)

// ModelInvocationError reports a failed model call. The agent that issued it
// stays available for later tasks.
type ModelInvocationError struct {
	Tier ModelTier
	Kind InvocationKind
	Err  error
}

func (e *ModelInvocationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("model invocation failed (tier %s): %s", e.Tier, e.Kind)
	}
	return fmt.Sprintf("model invocation failed (tier %s): %s: %v", e.Tier, e.Kind, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}
