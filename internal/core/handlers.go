package core

import (
	"fmt"
	"strings"
)

// Handler actions
const (
	ActionEscalateIfCritical  = "escalate_if_critical"
	ActionSendAcknowledgement = "send_acknowledgement"
	ActionUpdateERP           = "update_erp"
	ActionRequiresApproval    = "requires_approval"
	ActionLogChange           = "log_change"
	ActionManualTriage        = "manual_triage"
)

// Handler decides what a target agent does with a routed email and builds the
// task text sent through the cost optimizer
type Handler interface {
	Action(extraction ExtractionResult) string
	TaskDescription(extraction ExtractionResult) string
}

type poTrackerHandler struct{}

func (poTrackerHandler) Action(x ExtractionResult) string {
	switch x.Intent {
	case IntentDeliveryDelay:
		return ActionEscalateIfCritical
	case IntentAcknowledgementRequest:
		return ActionSendAcknowledgement
	default:
		return ActionUpdateERP
	}
}

func (poTrackerHandler) TaskDescription(x ExtractionResult) string {
	return fmt.Sprintf("PO %s has delivery update. Intent: %s. Dates: %s",
		orNone(x.Entities.PONumber), x.Intent, list(x.Entities.Dates))
}

type changeManagerHandler struct{}

func (changeManagerHandler) Action(x ExtractionResult) string {
	if x.Intent == IntentPriceChange || x.Intent == IntentQuantityChange {
		return ActionRequiresApproval
	}
	return ActionLogChange
}

func (changeManagerHandler) TaskDescription(x ExtractionResult) string {
	return fmt.Sprintf("Analyze impact of %s. PO: %s. Parts: %s. Prices: %s. Quantities: %s",
		x.Intent, orNone(x.Entities.PONumber), list(x.Entities.PartNumbers),
		list(x.Entities.Prices), list(x.Entities.Quantities))
}

type triageHandler struct{}

func (triageHandler) Action(ExtractionResult) string {
	return ActionManualTriage
}

func (triageHandler) TaskDescription(x ExtractionResult) string {
	e := x.Entities
	return fmt.Sprintf("Triage supplier email. Intent: %s. Confidence: %.4f. Entities: po=%s dates=%s quantities=%s parts=%s prices=%s",
		x.Intent, x.Confidence, orNone(e.PONumber), list(e.Dates), list(e.Quantities),
		list(e.PartNumbers), list(e.Prices))
}

// DefaultHandlers returns the handler for each routable agent
func DefaultHandlers() map[string]Handler {
	return map[string]Handler{
		AgentPOTracker:     poTrackerHandler{},
		AgentChangeManager: changeManagerHandler{},
		AgentRouting:       triageHandler{},
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func list(values []string) string {
	return "[" + strings.Join(values, ", ") + "]"
}
