package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
)

// ProcessEmailRequest is the body of POST /api/process-email
type ProcessEmailRequest struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ProcessEmailResponse is the result of POST /api/process-email
type ProcessEmailResponse struct {
	Status            core.ExecutionStatus `json:"status"`
	ExecutionID       string               `json:"execution_id"`
	Intent            core.Intent          `json:"intent"`
	Confidence        float64              `json:"confidence"`
	RoutedTo          string               `json:"routed_to"`
	Rule              string               `json:"rule"`
	LowConfidence     bool                 `json:"low_confidence"`
	ExtractedEntities core.Entities        `json:"extracted_entities"`
	Anomalies         []string             `json:"anomalies,omitempty"`
	Action            string               `json:"action"`
	ModelTier         core.ModelTier       `json:"model_tier,omitempty"`
	Cached            bool                 `json:"cached"`
	Cost              float64              `json:"cost"`
	Response          string               `json:"response,omitempty"`
	DurationMS        int64                `json:"duration_ms"`
	Error             string               `json:"error,omitempty"`
}

// OverrideBody is the body of POST /api/agents/{agent_id}/override
type OverrideBody struct {
	Decision    string `json:"decision"`
	Reason      string `json:"reason"`
	ExecutionID string `json:"execution_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HTTPServer exposes the router over a JSON HTTP API
type HTTPServer struct {
	service *core.OrchestratorService
	logger  *zap.Logger
	cfg     config.HTTPConfig
	server  *http.Server
}

// NewHTTPServer creates a new HTTP ingress
func NewHTTPServer(service *core.OrchestratorService, logger *zap.Logger, cfg config.HTTPConfig) *HTTPServer {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &HTTPServer{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
}

// Handler returns the API routes
func (h *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/process-email", h.handleProcessEmail)
	mux.HandleFunc("GET /api/agents/status", h.handleAgentStatus)
	mux.HandleFunc("POST /api/agents/{agent_id}/override", h.handleOverride)
	mux.HandleFunc("GET /api/observability/timeline", h.handleTimeline)
	mux.HandleFunc("GET /api/observability/metrics", h.handleMetrics)
	mux.HandleFunc("GET /health", h.handleHealth)
	return mux
}

// Start starts the HTTP listener
func (h *HTTPServer) Start() error {
	h.server = &http.Server{
		Addr:         h.cfg.ListenAddress,
		Handler:      h.Handler(),
		ReadTimeout:  h.cfg.ReadTimeout,
		WriteTimeout: h.cfg.WriteTimeout,
	}

	h.logger.Info("HTTP API starting", zap.String("address", h.cfg.ListenAddress))

	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP listener
func (h *HTTPServer) Stop() error {
	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

// ProcessEmail routes an email directly
func (h *HTTPServer) ProcessEmail(ctx context.Context, email *core.EmailMessage) (*core.ProcessResult, error) {
	return h.service.Process(ctx, email)
}

func (h *HTTPServer) handleProcessEmail(w http.ResponseWriter, r *http.Request) {
	var req ProcessEmailRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	result, err := h.service.Process(r.Context(), &core.EmailMessage{
		Sender:  req.Sender,
		Subject: req.Subject,
		Body:    req.Body,
	})

	status := http.StatusOK
	if err != nil {
		var invErr *core.ModelInvocationError
		if errors.As(err, &invErr) {
			status = http.StatusBadGateway
		} else {
			status = http.StatusInternalServerError
		}
	}
	h.writeJSON(w, status, newProcessEmailResponse(result))
}

func newProcessEmailResponse(result *core.ProcessResult) ProcessEmailResponse {
	x := result.Decision.Extraction
	anomalies := make([]string, 0, len(x.Anomalies))
	for _, a := range x.Anomalies {
		anomalies = append(anomalies, string(a))
	}
	return ProcessEmailResponse{
		Status:            result.Status,
		ExecutionID:       result.ExecutionID,
		Intent:            x.Intent,
		Confidence:        x.Confidence,
		RoutedTo:          result.Decision.TargetAgent,
		Rule:              result.Decision.Rule,
		LowConfidence:     result.Decision.LowConfidence,
		ExtractedEntities: x.Entities,
		Anomalies:         anomalies,
		Action:            result.Action,
		ModelTier:         result.ModelTier,
		Cached:            result.Cached,
		Cost:              result.Cost,
		Response:          result.Response,
		DurationMS:        result.Duration.Milliseconds(),
		Error:             result.Error,
	}
}

func (h *HTTPServer) handleAgentStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": h.service.AgentStatuses(),
	})
}

func (h *HTTPServer) handleOverride(w http.ResponseWriter, r *http.Request) {
	var body OverrideBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	ev, err := h.service.Override(r.Context(), core.OverrideRequest{
		AgentID:     r.PathValue("agent_id"),
		Decision:    body.Decision,
		Reason:      body.Reason,
		ExecutionID: body.ExecutionID,
	})
	if err != nil {
		var agentErr *core.UnknownAgentError
		switch {
		case errors.As(err, &agentErr), errors.Is(err, core.ErrUnknownExecution):
			h.writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, core.ErrInvalidOverride):
			h.writeError(w, http.StatusBadRequest, err.Error())
		default:
			h.writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "override_recorded",
		"event":  ev,
	})
}

func (h *HTTPServer) handleTimeline(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := core.TimelineFilter{
		AgentID:     strings.TrimSpace(q.Get("agent")),
		ExecutionID: strings.TrimSpace(q.Get("execution_id")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			h.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	events := h.service.Timeline(filter)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

func (h *HTTPServer) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Metrics())
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *HTTPServer) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorResponse{Error: msg})
}
