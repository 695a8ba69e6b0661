package factory

import (
	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/adapters/sink"
	"github.com/mikey/supplier-mail-router/internal/config"
	"github.com/mikey/supplier-mail-router/internal/core"
)

// SinkFactory creates result sinks based on configuration
type SinkFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewSinkFactory creates a new sink factory
func NewSinkFactory(cfg *config.Config, logger *zap.Logger) *SinkFactory {
	return &SinkFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateSinks creates every enabled result sink
func (f *SinkFactory) CreateSinks() ([]core.ResultSink, error) {
	var sinks []core.ResultSink

	if f.cfg.GetBool("sink.log.enabled") {
		sinks = append(sinks, sink.NewLogSink(f.logger))
	}

	relayCfg := f.cfg.GetRelaySink()
	if relayCfg.Enabled {
		relay, err := sink.NewRelaySink(relayCfg, f.logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, relay)
	}

	return sinks, nil
}
