package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/mikey/supplier-mail-router/internal/core"
)

// LogSink writes one structured log line per processed email
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new log sink
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Deliver implements core.ResultSink
func (s *LogSink) Deliver(_ context.Context, msg *core.EmailMessage, result *core.ProcessResult) error {
	fields := []zap.Field{
		zap.String("execution_id", result.ExecutionID),
		zap.String("sender", msg.Sender),
		zap.String("intent", string(result.Decision.Extraction.Intent)),
		zap.Float64("confidence", result.Decision.Extraction.Confidence),
		zap.String("routed_to", result.Decision.TargetAgent),
		zap.String("action", result.Action),
		zap.String("status", string(result.Status)),
		zap.String("model_tier", string(result.ModelTier)),
		zap.Bool("cached", result.Cached),
		zap.Float64("cost", result.Cost),
		zap.Duration("duration", result.Duration),
	}

	if result.Status == core.StatusFailed {
		s.logger.Warn("Email routing failed", append(fields, zap.String("error", result.Error))...)
		return nil
	}
	s.logger.Info("Email routed", fields...)
	return nil
}
