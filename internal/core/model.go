package core

import (
	"time"
)

// EmailMessage represents a supplier email as received by an ingress
type EmailMessage struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Intent is the classified purpose of a supplier email
type Intent string

const (
	IntentDeliveryDelay          Intent = "delivery_delay"
	IntentPriceChange            Intent = "price_change"
	IntentQuantityChange         Intent = "quantity_change"
	IntentAcknowledgementRequest Intent = "acknowledgement_request"
	IntentUnknown                Intent = "unknown"
)

// IntentPriority lists intents in tie-break order, highest priority first
var IntentPriority = []Intent{
	IntentDeliveryDelay,
	IntentPriceChange,
	IntentQuantityChange,
	IntentAcknowledgementRequest,
	IntentUnknown,
}

// ExtractionAnomaly describes a degraded extraction input. Anomalies are never fatal.
type ExtractionAnomaly string

const (
	AnomalyInvalidUTF8 ExtractionAnomaly = "invalid_utf8"
	AnomalyTruncated   ExtractionAnomaly = "truncated"
	AnomalyEmptyInput  ExtractionAnomaly = "empty_input"
)

// Entities holds the supply-chain facts extracted from an email.
// An empty string or slice means the entity was not found.
type Entities struct {
	PONumber    string   `json:"po_number,omitempty"`
	Dates       []string `json:"dates"`
	Quantities  []string `json:"quantities"`
	PartNumbers []string `json:"part_numbers"`
	Prices      []string `json:"prices"`
}

// EntityCategories is the number of entity categories an email can populate
const EntityCategories = 5

// PopulatedCategories returns how many entity categories hold at least one value
func (e Entities) PopulatedCategories() int {
	n := 0
	if e.PONumber != "" {
		n++
	}
	for _, values := range [][]string{e.Dates, e.Quantities, e.PartNumbers, e.Prices} {
		if len(values) > 0 {
			n++
		}
	}
	return n
}

// ExtractionResult is the output of entity extraction and intent classification
type ExtractionResult struct {
	Intent       Intent              `json:"intent"`
	Entities     Entities            `json:"entities"`
	Confidence   float64             `json:"confidence"`
	IntentScores map[Intent]int      `json:"intent_scores,omitempty"`
	Anomalies    []ExtractionAnomaly `json:"anomalies,omitempty"`
}

// AgentStatus is the lifecycle state of an agent
type AgentStatus string

const (
	AgentIdle  AgentStatus = "idle"
	AgentBusy  AgentStatus = "busy"
	AgentError AgentStatus = "error"
)

// Well-known agent identifiers
const (
	AgentInbox         = "inbox_agent"
	AgentRouting       = "routing_agent"
	AgentPOTracker     = "po_tracker"
	AgentChangeManager = "change_manager"
)

// AgentDefinition describes an agent registered at startup
type AgentDefinition struct {
	ID          string
	Name        string
	Description string
}

// Agent is a point-in-time copy of an agent's state
type Agent struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Status         AgentStatus `json:"status"`
	ActiveTasks    int         `json:"active_tasks"`
	TotalCost      float64     `json:"total_cost"`
	TasksCompleted int         `json:"tasks_completed"`
	TasksFailed    int         `json:"tasks_failed"`
}

// ModelTier is a cost/capability class for a model call
type ModelTier string

const (
	TierSmall  ModelTier = "small"
	TierMedium ModelTier = "medium"
	TierLarge  ModelTier = "large"
)

// ModelTiers lists the tiers from cheapest to most capable
var ModelTiers = []ModelTier{TierSmall, TierMedium, TierLarge}

// RoutingDecision records which agent an email was dispatched to and why
type RoutingDecision struct {
	Extraction    ExtractionResult `json:"extraction"`
	TargetAgent   string           `json:"target_agent"`
	Rule          string           `json:"rule"`
	LowConfidence bool             `json:"low_confidence"`
	DecidedAt     time.Time        `json:"decided_at"`
}

// CachedResponse is a model response stored in the response cache
type CachedResponse struct {
	Key       string
	Tier      ModelTier
	Value     string
	Checksum  string
	HitCount  int
	CreatedAt time.Time
}

// Resolution is the outcome of a cost optimizer call
type Resolution struct {
	Tier         ModelTier
	Complexity   float64
	Cost         float64
	Cached       bool
	Response     string
	InputTokens  int
	OutputTokens int
}

// CompletionRequest is a prompt sent to a model tier
type CompletionRequest struct {
	Tier   ModelTier
	Prompt string
}

// Completion is a model response with the usage the provider reported
type Completion struct {
	Text         string
	Model        string
	InputTokens  int
	OutputTokens int
}

// EventKind classifies execution events
type EventKind string

const (
	EventExtract  EventKind = "extract"
	EventRoute    EventKind = "route"
	EventTask     EventKind = "task"
	EventOverride EventKind = "override"
)

// ExecutionEvent is an append-only record of an agent action
type ExecutionEvent struct {
	Seq         uint64            `json:"seq"`
	ExecutionID string            `json:"execution_id"`
	AgentID     string            `json:"agent_id"`
	Kind        EventKind         `json:"kind"`
	Action      string            `json:"action"`
	Timestamp   time.Time         `json:"timestamp"`
	Duration    time.Duration     `json:"duration_ns"`
	Cost        float64           `json:"cost"`
	Success     bool              `json:"success"`
	ModelTier   ModelTier         `json:"model_tier,omitempty"`
	Cached      bool              `json:"cached"`
	Detail      map[string]string `json:"detail,omitempty"`
}

// ExecutionStatus is the terminal state of a processed email
type ExecutionStatus string

const (
	StatusCompleted ExecutionStatus = "completed"
	StatusFailed    ExecutionStatus = "failed"
)

// ProcessResult is returned for every processed email, including failed ones
type ProcessResult struct {
	ExecutionID string          `json:"execution_id"`
	Status      ExecutionStatus `json:"status"`
	Decision    RoutingDecision `json:"decision"`
	Action      string          `json:"action"`
	ModelTier   ModelTier       `json:"model_tier,omitempty"`
	Cached      bool            `json:"cached"`
	Cost        float64         `json:"cost"`
	Response    string          `json:"response,omitempty"`
	Duration    time.Duration   `json:"duration_ns"`
	Error       string          `json:"error,omitempty"`
}

// OverrideRequest is an externally supplied correction for an agent decision
type OverrideRequest struct {
	AgentID     string `json:"agent_id"`
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
	ExecutionID string `json:"execution_id,omitempty"`
}

// TimelineFilter narrows a timeline query
type TimelineFilter struct {
	AgentID     string
	ExecutionID string
	Limit       int
}

// AgentMetrics are aggregates derived from one agent's events
type AgentMetrics struct {
	AgentID             string        `json:"agent_id"`
	TasksCompleted      int           `json:"tasks_completed"`
	TasksFailed         int           `json:"tasks_failed"`
	SuccessRate         *float64      `json:"success_rate"`
	AverageResponseTime time.Duration `json:"average_response_time_ns"`
	TotalCost           float64       `json:"total_cost"`
	Overrides           int           `json:"overrides"`
	OverrideRate        float64       `json:"override_rate"`
}

// MetricsSnapshot is a point-in-time aggregate view of the event log.
// EstimatedSavings prices each cache hit at the mean uncached cost of its tier.
type MetricsSnapshot struct {
	TotalProcessed   int               `json:"total_processed"`
	SuccessRate      *float64          `json:"success_rate"`
	CacheHits        int               `json:"cache_hits"`
	ResolveCalls     int               `json:"resolve_calls"`
	CacheHitRate     float64           `json:"cache_hit_rate"`
	TotalCost        float64           `json:"total_cost"`
	EstimatedSavings float64           `json:"estimated_savings"`
	CallsByTier      map[ModelTier]int `json:"calls_by_tier"`
	EventsLastHour   int               `json:"events_last_hour"`
	Agents           []AgentMetrics    `json:"agents"`
	GeneratedAt      time.Time         `json:"generated_at"`
}
