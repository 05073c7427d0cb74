package alert

import (
	"context"
	"errors"
	"log/slog"

	"github.com/togetheros/rollout/pkg/logger"
)

// MultiSink fans an alert out to several sinks. Every sink is attempted even
// when an earlier one fails.
type MultiSink struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewMultiSink combines sinks. Nil sinks are skipped.
func NewMultiSink(log *slog.Logger, sinks ...Sink) *MultiSink {
	if log == nil {
		log = slog.Default()
	}
	m := &MultiSink{logger: log}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of sinks.
func (m *MultiSink) Len() int { return len(m.sinks) }

// Send delivers a to every sink. Failures are logged per sink and returned
// joined under ErrDeliveryFailed.
func (m *MultiSink) Send(ctx context.Context, a Alert) error {
	var errs []error
	for i, s := range m.sinks {
		if err := s.Send(ctx, a); err != nil {
			m.logger.LogAttrs(ctx, slog.LevelError, "failed to deliver alert",
				slog.String("title", a.Title),
				logger.Severity(a.Severity.String()),
				slog.Int("sink_index", i),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrDeliveryFailed}, errs...)...)
	}
	return nil
}
