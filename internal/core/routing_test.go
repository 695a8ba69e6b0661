package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name          string
		intent        Intent
		confidence    float64
		target        string
		rule          string
		lowConfidence bool
	}{
		{"delay", IntentDeliveryDelay, 0.59, AgentPOTracker, "intent:delivery_delay", false},
		{"acknowledgement", IntentAcknowledgementRequest, 0.5, AgentPOTracker, "intent:acknowledgement_request", false},
		{"price", IntentPriceChange, 0.7, AgentChangeManager, "intent:price_change", false},
		{"quantity", IntentQuantityChange, 0.3, AgentChangeManager, "intent:quantity_change", false},
		{"unknown", IntentUnknown, 0.3, AgentRouting, "intent:unknown", true},
		{"floor beats intent", IntentPriceChange, 0.29, AgentRouting, RuleConfidenceFloor, true},
		{"floor with unknown", IntentUnknown, 0.1, AgentRouting, RuleConfidenceFloor, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Route(ExtractionResult{Intent: tt.intent, Confidence: tt.confidence}, DefaultConfidenceFloor)
			assert.Equal(t, tt.target, d.TargetAgent)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.lowConfidence, d.LowConfidence)
			assert.False(t, d.DecidedAt.IsZero())
		})
	}
}

func TestRoute_Idempotent(t *testing.T) {
	x := ExtractionResult{Intent: IntentQuantityChange, Confidence: 0.42}
	first := Route(x, 0.3)
	for i := 0; i < 5; i++ {
		d := Route(x, 0.3)
		assert.Equal(t, first.TargetAgent, d.TargetAgent)
		assert.Equal(t, first.Rule, d.Rule)
	}
}

func TestHandlers(t *testing.T) {
	h := DefaultHandlers()
	x := ExtractionResult{
		Intent: IntentDeliveryDelay,
		Entities: Entities{
			PONumber: "12345",
			Dates:    []string{"Dec 15, 2024"},
		},
	}

	assert.Equal(t, ActionEscalateIfCritical, h[AgentPOTracker].Action(x))
	assert.Equal(t, "PO 12345 has delivery update. Intent: delivery_delay. Dates: [Dec 15, 2024]", h[AgentPOTracker].TaskDescription(x))

	x.Intent = IntentAcknowledgementRequest
	assert.Equal(t, ActionSendAcknowledgement, h[AgentPOTracker].Action(x))

	price := ExtractionResult{
		Intent:   IntentPriceChange,
		Entities: Entities{PartNumbers: []string{"ABC-123"}, Prices: []string{"$10.00", "$12.00"}},
	}
	assert.Equal(t, ActionRequiresApproval, h[AgentChangeManager].Action(price))
	assert.Equal(t, "Analyze impact of price_change. PO: none. Parts: [ABC-123]. Prices: [$10.00, $12.00]. Quantities: []",
		h[AgentChangeManager].TaskDescription(price))
	assert.Equal(t, ActionLogChange, h[AgentChangeManager].Action(ExtractionResult{Intent: IntentUnknown}))

	assert.Equal(t, ActionManualTriage, h[AgentRouting].Action(price))
	assert.Contains(t, h[AgentRouting].TaskDescription(price), "Intent: price_change. Confidence: 0.0000")
}

func TestModelInvocationError(t *testing.T) {
	err := &ModelInvocationError{Tier: TierSmall, Kind: InvocationEmptyResponse}
	assert.Equal(t, "model invocation failed (tier small): empty_response", err.Error())
	assert.Nil(t, err.Unwrap())
}
