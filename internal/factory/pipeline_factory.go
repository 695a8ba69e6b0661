package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/extractor"
	"github.com/mikey/supplier-mail-router/internal/observability"
	"github.com/mikey/supplier-mail-router/internal/optimizer"
	"github.com/mikey/supplier-mail-router/internal/registry"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// PipelineFactory creates the extractor, optimizer, registry and event log
type PipelineFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewPipelineFactory creates a new pipeline factory
func NewPipelineFactory(cfg *config.Config, logger *zap.Logger) *PipelineFactory {
	return &PipelineFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateExtractor creates the entity extractor. A configured vocabulary
// replaces the built-in intent phrases.
func (f *PipelineFactory) CreateExtractor(textProcessor *utils.TextProcessor) (core.Extractor, error) {
	extCfg, err := f.cfg.GetExtractor()
	if err != nil {
		return nil, err
	}

	classifier := extractor.NewKeywordClassifier()
	if len(extCfg.Vocabulary) > 0 {
		classifier, err = extractor.NewKeywordClassifierWithVocabulary(extCfg.Vocabulary)
		if err != nil {
			return nil, fmt.Errorf("invalid extractor vocabulary: %w", err)
		}
		f.logger.Info("Using configured extractor vocabulary", zap.Int("intents", len(extCfg.Vocabulary)))
	}

	return extractor.NewRegexExtractor(classifier, textProcessor, extCfg.MaxTextSize), nil
}

// CreateOptimizer creates the cost optimizer. cache may be nil.
func (f *PipelineFactory) CreateOptimizer(llm core.LLMClient, cache core.CacheRepository) (core.CostOptimizer, error) {
	optCfg, err := f.cfg.GetOptimizer()
	if err != nil {
		return nil, err
	}

	pricing := make(map[core.ModelTier]optimizer.Price, len(optCfg.Pricing))
	for tier, p := range optCfg.Pricing {
		pricing[tier] = optimizer.Price{Input: p.Input, Output: p.Output}
	}

	return optimizer.NewCostOptimizer(llm, cache, optimizer.Settings{
		LowThreshold:  optCfg.LowThreshold,
		HighThreshold: optCfg.HighThreshold,
		HintWeight:    optCfg.HintWeight,
		LengthNorm:    optCfg.LengthNorm,
		InvokeTimeout: optCfg.InvokeTimeout,
		RateLimit:     optCfg.RateLimit,
		RateBurst:     optCfg.RateBurst,
		Pricing:       pricing,
	}, f.logger), nil
}

// CreateRegistry creates the agent registry with the default agents
func (f *PipelineFactory) CreateRegistry() (core.AgentRegistry, error) {
	return registry.New(registry.DefaultAgents(), f.logger)
}

// CreateEventLog creates the execution event log
func (f *PipelineFactory) CreateEventLog() core.EventLog {
	obsCfg := f.cfg.GetObservability()
	return observability.NewLog(f.logger,
		observability.WithMaxEvents(obsCfg.MaxEvents),
		observability.WithMirror(obsCfg.LogEvents))
}

// ConfidenceFloor returns the routing confidence floor
func (f *PipelineFactory) ConfidenceFloor() float64 {
	return f.cfg.GetRouting().ConfidenceFloor
}
