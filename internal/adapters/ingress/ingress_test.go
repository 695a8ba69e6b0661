package ingress

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/adapters/cache"
	"github.com/mikey/supplier-mail-router/internal/adapters/simulated"
	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/extractor"
	"github.com/mikey/supplier-mail-router/internal/observability"
	"github.com/mikey/supplier-mail-router/internal/optimizer"
	"github.com/mikey/supplier-mail-router/internal/registry"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

const (
	delayEmailSender  = "logistics@acme-supply.com"
	delayEmailSubject = "PO #12345 Delivery Update"
	delayEmailBody    = "Dear team, the shipment has been delayed by 3 days. New delivery date: Dec 15, 2024. Quantity: 500 units."
)

type failingLLM struct{}

func (failingLLM) Complete(context.Context, *core.CompletionRequest) (*core.Completion, error) {
	return nil, errors.New("upstream unavailable")
}

func newTestService(t *testing.T, llm core.LLMClient) *core.OrchestratorService {
	t.Helper()
	logger := zap.NewNop()

	if llm == nil {
		llm = simulated.NewSimulatedClient(config.ModelMap{
			core.TierSmall:  "gpt-3.5-turbo",
			core.TierMedium: "gpt-3.5-turbo-16k",
			core.TierLarge:  "gpt-4",
		}, 0, logger)
	}

	mem := cache.NewMemoryCache(logger, cache.Options{})
	t.Cleanup(mem.Stop)

	reg, err := registry.New(registry.DefaultAgents(), logger)
	require.NoError(t, err)

	return core.NewOrchestratorService(
		extractor.NewRegexExtractor(extractor.NewKeywordClassifier(), utils.NewTextProcessor(logger), 0),
		optimizer.NewCostOptimizer(llm, mem, optimizer.DefaultSettings(), logger),
		reg,
		observability.NewLog(logger),
		nil,
		logger,
		core.DefaultConfidenceFloor,
	)
}
