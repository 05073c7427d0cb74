package canary

import (
	"context"
	"log/slog"
	"time"

	"github.com/togetheros/rollout/pkg/alert"
)

// DefaultHistoryLimit is how many finished deployments are kept.
const DefaultHistoryLimit = 10

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithNotifier sets where alerts go. Default drops them.
func WithNotifier(n alert.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.alerts = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithHistoryLimit caps the number of archived deployments.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}

// WithDefaultStages sets the stage table Start uses when none is given.
func WithDefaultStages(stages []Stage) Option {
	return func(c *Controller) {
		if validateStages(stages) == nil {
			c.defaultStages = stages
		}
	}
}

// WithIDGenerator overrides deployment id generation.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// OnComplete registers fn to run after a deployment completes. Hooks run
// on the goroutine that completed the deployment, outside the controller
// lock.
func OnComplete(fn func(ctx context.Context, d *Deployment)) Option {
	return func(c *Controller) {
		if fn != nil {
			c.onComplete = append(c.onComplete, fn)
		}
	}
}
