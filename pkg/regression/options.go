package regression

import (
	"log/slog"
	"time"

	"github.com/togetheros/rollout/pkg/alert"
)

// Option configures a Detector.
type Option func(*Detector)

// WithLogger sets the detector's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithNotifier sets where regression alerts go. Default drops them.
func WithNotifier(n alert.Notifier) Option {
	return func(d *Detector) {
		if n != nil {
			d.alerts = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		if now != nil {
			d.now = now
		}
	}
}
