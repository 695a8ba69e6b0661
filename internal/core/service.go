package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrchestratorService is the core service that extracts, routes and executes supplier emails
type OrchestratorService struct {
	extractor       Extractor
	optimizer       CostOptimizer
	registry        AgentRegistry
	events          EventLog
	handlers        map[string]Handler
	sinks           []ResultSink
	logger          *zap.Logger
	confidenceFloor float64
}

// NewOrchestratorService creates a new orchestrator service
func NewOrchestratorService(
	extractor Extractor,
	optimizer CostOptimizer,
	registry AgentRegistry,
	events EventLog,
	sinks []ResultSink,
	logger *zap.Logger,
	confidenceFloor float64,
) *OrchestratorService {
	return &OrchestratorService{
		extractor:       extractor,
		optimizer:       optimizer,
		registry:        registry,
		events:          events,
		handlers:        DefaultHandlers(),
		sinks:           sinks,
		logger:          logger,
		confidenceFloor: confidenceFloor,
	}
}

// Process runs one email through extraction, routing and execution. A result
// is returned even when processing fails, together with the error.
func (s *OrchestratorService) Process(ctx context.Context, msg *EmailMessage) (*ProcessResult, error) {
	start := time.Now()
	executionID := uuid.NewString()

	extraction := s.extractor.Extract(msg)
	s.events.Record(ExecutionEvent{
		ExecutionID: executionID,
		AgentID:     AgentInbox,
		Kind:        EventExtract,
		Action:      "extract_entities",
		Duration:    time.Since(start),
		Success:     true,
		Detail:      extractionDetail(extraction),
	})

	decision := Route(extraction, s.confidenceFloor)
	s.events.Record(ExecutionEvent{
		ExecutionID: executionID,
		AgentID:     AgentRouting,
		Kind:        EventRoute,
		Action:      "route_to_" + decision.TargetAgent,
		Success:     true,
		Detail: map[string]string{
			"rule":           decision.Rule,
			"target":         decision.TargetAgent,
			"low_confidence": strconv.FormatBool(decision.LowConfidence),
		},
	})

	s.logger.Debug("Email routed",
		zap.String("execution_id", executionID),
		zap.String("sender", msg.Sender),
		zap.String("intent", string(extraction.Intent)),
		zap.Float64("confidence", extraction.Confidence),
		zap.String("target", decision.TargetAgent),
		zap.String("rule", decision.Rule))

	result := &ProcessResult{
		ExecutionID: executionID,
		Decision:    decision,
	}

	err := s.execute(ctx, executionID, decision, result)
	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err.Error()
		s.logger.Warn("Email processing failed",
			zap.String("execution_id", executionID),
			zap.String("target", decision.TargetAgent),
			zap.Error(err))
	} else {
		result.Status = StatusCompleted
	}

	s.deliver(ctx, msg, result)
	return result, err
}

func (s *OrchestratorService) execute(ctx context.Context, executionID string, decision RoutingDecision, result *ProcessResult) error {
	handler, ok := s.handlers[decision.TargetAgent]
	if !ok {
		return &UnknownAgentError{AgentID: decision.TargetAgent}
	}
	result.Action = handler.Action(decision.Extraction)

	guard, err := s.registry.BeginTask(decision.TargetAgent)
	if err != nil {
		return fmt.Errorf("failed to begin task: %w", err)
	}

	taskStart := time.Now()
	task := handler.TaskDescription(decision.Extraction)
	resolution, resolveErr := s.optimizer.Resolve(ctx, task, 1-decision.Extraction.Confidence)

	event := ExecutionEvent{
		ExecutionID: executionID,
		AgentID:     decision.TargetAgent,
		Kind:        EventTask,
		Action:      result.Action,
	}

	if resolveErr != nil {
		if err := guard.Complete(false, 0); err != nil {
			s.logger.Error("Failed to complete task", zap.String("agent", decision.TargetAgent), zap.Error(err))
		}
		event.Duration = time.Since(taskStart)
		event.Detail = map[string]string{
			"failure_kind": failureKind(resolveErr),
			"error":        resolveErr.Error(),
		}
		var invErr *ModelInvocationError
		if errors.As(resolveErr, &invErr) {
			event.ModelTier = invErr.Tier
			result.ModelTier = invErr.Tier
		}
		s.events.Record(event)
		return resolveErr
	}

	if err := guard.Complete(true, resolution.Cost); err != nil {
		s.logger.Error("Failed to complete task", zap.String("agent", decision.TargetAgent), zap.Error(err))
	}

	event.Duration = time.Since(taskStart)
	event.Cost = resolution.Cost
	event.Success = true
	event.ModelTier = resolution.Tier
	event.Cached = resolution.Cached
	event.Detail = map[string]string{
		"complexity": strconv.FormatFloat(resolution.Complexity, 'f', 4, 64),
	}
	s.events.Record(event)

	result.ModelTier = resolution.Tier
	result.Cached = resolution.Cached
	result.Cost = resolution.Cost
	result.Response = resolution.Response
	return nil
}

func (s *OrchestratorService) deliver(ctx context.Context, msg *EmailMessage, result *ProcessResult) {
	for _, sink := range s.sinks {
		if err := sink.Deliver(ctx, msg, result); err != nil {
			s.logger.Error("Failed to deliver result",
				zap.String("execution_id", result.ExecutionID),
				zap.Error(err))
		}
	}
}

// Override records an externally supplied correction. Earlier events are left untouched.
func (s *OrchestratorService) Override(ctx context.Context, req OverrideRequest) (ExecutionEvent, error) {
	if _, err := s.registry.Get(req.AgentID); err != nil {
		return ExecutionEvent{}, err
	}
	if req.Decision == "" {
		return ExecutionEvent{}, fmt.Errorf("%w: decision is required", ErrInvalidOverride)
	}
	if req.ExecutionID != "" && !s.events.HasExecution(req.ExecutionID) {
		return ExecutionEvent{}, fmt.Errorf("%w: %s", ErrUnknownExecution, req.ExecutionID)
	}

	ev := s.events.Record(ExecutionEvent{
		ExecutionID: req.ExecutionID,
		AgentID:     req.AgentID,
		Kind:        EventOverride,
		Action:      "override",
		Success:     true,
		Detail: map[string]string{
			"decision": req.Decision,
			"reason":   req.Reason,
		},
	})

	s.logger.Info("Agent decision overridden",
		zap.String("agent", req.AgentID),
		zap.String("decision", req.Decision),
		zap.String("execution_id", req.ExecutionID))
	return ev, nil
}

// AgentStatuses returns a snapshot of every registered agent
func (s *OrchestratorService) AgentStatuses() []Agent {
	return s.registry.StatusSnapshot()
}

// Timeline returns execution events matching the filter in insertion order
func (s *OrchestratorService) Timeline(filter TimelineFilter) []ExecutionEvent {
	return s.events.Query(filter)
}

// Metrics returns aggregates derived from the event log
func (s *OrchestratorService) Metrics() MetricsSnapshot {
	return s.events.Metrics()
}

func failureKind(err error) string {
	var invErr *ModelInvocationError
	if errors.As(err, &invErr) {
		return string(invErr.Kind)
	}
	var agentErr *UnknownAgentError
	if errors.As(err, &agentErr) {
		return "unknown_agent"
	}
	return "internal"
}

func extractionDetail(x ExtractionResult) map[string]string {
	detail := map[string]string{
		"intent":     string(x.Intent),
		"confidence": strconv.FormatFloat(x.Confidence, 'f', 4, 64),
	}
	if x.Entities.PONumber != "" {
		detail["po_number"] = x.Entities.PONumber
	}
	for i, a := range x.Anomalies {
		detail["anomaly_"+strconv.Itoa(i)] = string(a)
	}
	return detail
}
