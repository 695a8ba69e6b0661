package simulated

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// SimulatedClient is an offline LLMClient that answers deterministically per tier.
// It lets the router run without provider credentials.
type SimulatedClient struct {
	models  config.ModelMap
	latency time.Duration
	logger  *zap.Logger
}

// NewSimulatedClient creates a new simulated client
func NewSimulatedClient(models config.ModelMap, latency time.Duration, logger *zap.Logger) *SimulatedClient {
	return &SimulatedClient{
		models:  models,
		latency: latency,
		logger:  logger,
	}
}

// Complete returns a canned response for the request tier after the configured latency
func (c *SimulatedClient) Complete(ctx context.Context, req *core.CompletionRequest) (*core.Completion, error) {
	model, ok := c.models[req.Tier]
	if !ok || model == "" {
		return nil, fmt.Errorf("no simulated model configured for tier %s", req.Tier)
	}

	if c.latency > 0 {
		timer := time.NewTimer(c.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var text string
	switch req.Tier {
	case core.TierSmall:
		text = "Mock response from " + model
	case core.TierMedium:
		text = "Detailed mock response from " + model
	default:
		text = "Comprehensive mock response from " + model + " with reasoning"
	}

	c.logger.Debug("Simulated completion",
		zap.String("model", model),
		zap.String("tier", string(req.Tier)))

	return &core.Completion{
		Text:         text,
		Model:        model,
		InputTokens:  utils.EstimateTokens(req.Prompt),
		OutputTokens: utils.EstimateTokens(text),
	}, nil
}
