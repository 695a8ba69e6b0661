package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/adapters/bedrock"
	"github.com/mikey/supplier-mail-router/internal/adapters/gemini"
	"github.com/mikey/supplier-mail-router/internal/adapters/openai"
	"github.com/mikey/supplier-mail-router/internal/adapters/simulated"
	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// LLMFactory creates LLM clients
type LLMFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewLLMFactory creates a new LLM factory
func NewLLMFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *LLMFactory {
	return &LLMFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateLLMClient creates a new LLM client based on the configuration
func (f *LLMFactory) CreateLLMClient() (core.LLMClient, error) {
	provider := f.cfg.GetLLM().Provider
	f.logger.Info("Creating LLM client", zap.String("provider", provider))

	switch provider {
	case "simulated", "":
		simCfg, err := f.cfg.GetSimulated()
		if err != nil {
			return nil, err
		}
		return simulated.NewSimulatedClient(simCfg.Models, simCfg.Latency, f.logger), nil
	case "bedrock":
		return bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "gemini":
		return gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	case "openai":
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateClient()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}
}
