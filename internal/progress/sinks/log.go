package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/review-crawler/internal/progress"
)

// LogSink emits structured logs for each session milestone.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.Int("page", evt.Page),
			zap.String("outcome", string(evt.Outcome)),
			zap.Int("found", evt.Found),
			zap.Int("added", evt.Added),
			zap.Int("total", evt.Total),
			zap.Int("attempts", evt.Attempts),
			zap.Duration("dur", evt.Dur),
		}
		if evt.StopReason != "" {
			fields = append(fields, zap.String("stop_reason", evt.StopReason))
		}
		if evt.Note != "" {
			fields = append(fields, zap.String("note", evt.Note))
		}
		if evt.Stage == progress.StageSessionError {
			s.logger.Warn("progress event", fields...)
			continue
		}
		s.logger.Debug("progress event", fields...)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
