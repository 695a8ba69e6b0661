package core

import (
	"context"
)

// Extractor turns a raw email into entities, an intent and a confidence score
type Extractor interface {
	// Extract never fails; degraded input is reported through anomalies
	Extract(msg *EmailMessage) ExtractionResult
}

// CostOptimizer picks a model tier for a task and serves it from cache when possible
type CostOptimizer interface {
	Resolve(ctx context.Context, task string, complexityHint float64) (*Resolution, error)
}

// TaskGuard completes a task started with AgentRegistry.BeginTask exactly once
type TaskGuard interface {
	Complete(success bool, cost float64) error
}

// AgentRegistry owns agent state and per-agent accounting
type AgentRegistry interface {
	Get(id string) (Agent, error)
	BeginTask(id string) (TaskGuard, error)
	StatusSnapshot() []Agent
}

// EventLog is the append-only execution history
type EventLog interface {
	Record(ev ExecutionEvent) ExecutionEvent
	Timeline() []ExecutionEvent
	Query(filter TimelineFilter) []ExecutionEvent
	HasExecution(executionID string) bool
	Metrics() MetricsSnapshot
}

// LLMClient defines the interface for interacting with LLM services
type LLMClient interface {
	// Complete sends a prompt to the model configured for the request tier
	Complete(ctx context.Context, req *CompletionRequest) (*Completion, error)
}

// CacheRepository defines the interface for caching model responses
type CacheRepository interface {
	// Get retrieves a cached response and increments its hit count.
	// Returns ErrCacheMiss when the key is absent and ErrCacheCorrupt
	// when the stored value fails its checksum.
	Get(ctx context.Context, key string) (*CachedResponse, error)

	// Put stores a response, replacing any previous value for the key
	Put(ctx context.Context, entry *CachedResponse) error

	// Delete removes a cache entry
	Delete(ctx context.Context, key string) error

	// Cleanup removes expired entries
	Cleanup(ctx context.Context) error
}

// ResultSink receives every processed email together with its result
type ResultSink interface {
	Deliver(ctx context.Context, msg *EmailMessage, result *ProcessResult) error
}
