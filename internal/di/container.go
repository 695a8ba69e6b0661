package di

import (
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
	"github.com/mikey/supplier-mail-router/internal/factory"
	"github.com/mikey/supplier-mail-router/internal/logging"
	"github.com/mikey/supplier-mail-router/internal/ports"
	"github.com/mikey/supplier-mail-router/internal/suppliers"
	"github.com/mikey/supplier-mail-router/internal/utils"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideCommon(container); err != nil {
		return nil, err
	}

	// Register cache repository, nil when disabled
	if err := container.Provide(func(f *factory.CacheFactory) (core.CacheRepository, error) {
		return f.CreateCacheRepository()
	}); err != nil {
		return nil, err
	}

	// Register result sinks
	if err := container.Provide(func(f *factory.SinkFactory) ([]core.ResultSink, error) {
		return f.CreateSinks()
	}); err != nil {
		return nil, err
	}

	// Register supplier directory
	if err := container.Provide(func(cfg *config.Config, logger *zap.Logger) *suppliers.Directory {
		return suppliers.NewDirectory(cfg.GetAllowedDomains(), logger)
	}); err != nil {
		return nil, err
	}

	if err := container.Provide(core.NewOrchestratorService); err != nil {
		return nil, err
	}

	// Register ingresses
	if err := container.Provide(factory.NewIngressFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.IngressFactory) ([]ports.Ingress, error) {
		return f.CreateIngresses()
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideCommon registers the factories and pipeline components shared by the
// daemon and the CLI. The caller provides *config.Config, *zap.Logger,
// core.CacheRepository and []core.ResultSink.
func provideCommon(container *dig.Container) error {
	// Register factories
	for _, ctor := range []interface{}{
		factory.NewLLMFactory,
		factory.NewCacheFactory,
		factory.NewSinkFactory,
		factory.NewPipelineFactory,
		factory.NewTextProcessorFactory,
	} {
		if err := container.Provide(ctor); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(func(f *factory.TextProcessorFactory) *utils.TextProcessor {
		return f.CreateTextProcessor()
	}); err != nil {
		return err
	}

	// Register LLM client
	if err := container.Provide(func(f *factory.LLMFactory) (core.LLMClient, error) {
		return f.CreateLLMClient()
	}); err != nil {
		return err
	}

	// Register pipeline components
	if err := container.Provide(func(f *factory.PipelineFactory, tp *utils.TextProcessor) (core.Extractor, error) {
		return f.CreateExtractor(tp)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory, llm core.LLMClient, cache core.CacheRepository) (core.CostOptimizer, error) {
		return f.CreateOptimizer(llm, cache)
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) (core.AgentRegistry, error) {
		return f.CreateRegistry()
	}); err != nil {
		return err
	}
	if err := container.Provide(func(f *factory.PipelineFactory) core.EventLog {
		return f.CreateEventLog()
	}); err != nil {
		return err
	}

	// Register routing confidence floor
	return container.Provide(func(f *factory.PipelineFactory) float64 {
		return f.ConfidenceFloor()
	})
}
