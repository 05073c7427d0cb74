package canary

import (
	"context"
	"log/slog"
	"time"

	"github.com/togetheros/rollout/pkg/logger"
)

// Advancer periodically advances the current deployment once its stage is
// due (see Controller.AdvanceIfDue) and flushes request metrics to the
// store.
type Advancer struct {
	controller *Controller
	interval   time.Duration
	logger     *slog.Logger
}

// NewAdvancer returns an advancer checking every interval (15s if zero).
func NewAdvancer(c *Controller, interval time.Duration, log *slog.Logger) *Advancer {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Advancer{controller: c, interval: interval, logger: log.With(logger.Component("canary_advancer"))}
}

// Run checks immediately, then on every tick until ctx is done.
func (a *Advancer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	a.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "canary advancer shutting down")
			if err := a.controller.Flush(context.WithoutCancel(ctx)); err != nil {
				a.logger.ErrorContext(ctx, "failed to flush deployment state", logger.Error(err))
			}
			return nil
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick performs one check.
func (a *Advancer) Tick(ctx context.Context) {
	if d, ok := a.controller.AdvanceIfDue(ctx); ok {
		a.logger.InfoContext(ctx, "canary stage advanced",
			logger.DeploymentID(d.ID), logger.Version(d.Version),
			slog.String("status", string(d.Status)),
			slog.Int("percentage", d.CurrentPercentage))
	}
	if err := a.controller.Flush(ctx); err != nil {
		a.logger.ErrorContext(ctx, "failed to flush deployment state", logger.Error(err))
	}
}
