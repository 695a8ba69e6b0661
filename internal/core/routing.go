package core

import (
	"time"
)

// Routing rules recorded on a decision
const (
	RuleConfidenceFloor = "confidence_floor"
	RuleIntentPrefix    = "intent:"
)

// DefaultConfidenceFloor is the routing floor used when none is configured
const DefaultConfidenceFloor = 0.3

// Route maps an extraction to exactly one target agent. It depends only on the
// intent and confidence, so equal inputs always yield equal targets. The
// confidence floor takes precedence over the intent.
func Route(extraction ExtractionResult, floor float64) RoutingDecision {
	decision := RoutingDecision{
		Extraction: extraction,
		DecidedAt:  time.Now(),
	}

	if extraction.Confidence < floor {
		decision.TargetAgent = AgentRouting
		decision.Rule = RuleConfidenceFloor
		decision.LowConfidence = true
		return decision
	}

	decision.Rule = RuleIntentPrefix + string(extraction.Intent)
	switch extraction.Intent {
	case IntentDeliveryDelay, IntentAcknowledgementRequest:
		decision.TargetAgent = AgentPOTracker
	case IntentPriceChange, IntentQuantityChange:
		decision.TargetAgent = AgentChangeManager
	default:
		decision.TargetAgent = AgentRouting
		decision.LowConfidence = true
	}
	return decision
}
