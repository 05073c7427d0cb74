package alert

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/togetheros/rollout/pkg/logger"
)

// LogSink writes alerts to a logger. Critical and high alerts log at error
// level, medium at warn, low at info.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink writing to log.
func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{logger: log}
}

// Send logs a. It never fails.
func (s *LogSink) Send(ctx context.Context, a Alert) error {
	attrs := make([]slog.Attr, 0, len(a.Metadata)+2)
	attrs = append(attrs, logger.Severity(a.Severity.String()), slog.String("message", a.Message))
	for _, k := range slices.Sorted(maps.Keys(a.Metadata)) {
		attrs = append(attrs, slog.Any(k, a.Metadata[k]))
	}
	s.logger.LogAttrs(ctx, levelFor(a.Severity), a.Title, attrs...)
	return nil
}

func levelFor(s Severity) slog.Level {
	switch {
	case s >= SeverityHigh:
		return slog.LevelError
	case s == SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
