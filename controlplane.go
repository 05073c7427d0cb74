package rollout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/togetheros/rollout/pkg/alert"
	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/logger"
	"github.com/togetheros/rollout/pkg/metrics"
	"github.com/togetheros/rollout/pkg/regression"
)

// Outcome is what a caller reports once a request has finished.
type Outcome struct {
	Route     string
	LatencyMs float64
	IsError   bool
	IsCanary  bool
}

// ControlPlane owns the flag evaluator, the canary controller and the
// regression detector for one process. Completing a deployment resets every
// latency baseline so the new version is measured against itself.
type ControlPlane struct {
	flags    *feature.Evaluator
	canary   *canary.Controller
	detector *regression.Detector
	logger   *slog.Logger
}

// New builds a ControlPlane over the given flag provider and deployment
// store. Both are loaded immediately; load failures are logged and the
// components start empty.
func New(ctx context.Context, flags feature.Provider, deployments canary.Store, opts ...Option) *ControlPlane {
	o := options{
		logger:     slog.Default(),
		notifier:   alert.Nop,
		now:        time.Now,
		regression: regression.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	cp := &ControlPlane{logger: o.logger.With(logger.Component("controlplane"))}
	cp.detector = regression.NewDetector(o.regression,
		regression.WithLogger(o.logger),
		regression.WithNotifier(o.notifier),
		regression.WithClock(o.now),
	)
	cp.flags = feature.NewEvaluator(ctx, flags, append([]feature.Option{
		feature.WithLogger(o.logger),
		feature.WithClock(o.now),
	}, o.featureOpts...)...)
	cp.canary = canary.NewController(ctx, deployments, append([]canary.Option{
		canary.WithLogger(o.logger),
		canary.WithNotifier(o.notifier),
		canary.WithClock(o.now),
		canary.OnComplete(cp.deploymentCompleted),
	}, o.canaryOpts...)...)
	return cp
}

func (cp *ControlPlane) deploymentCompleted(ctx context.Context, d *canary.Deployment) {
	cp.detector.ResetAllBaselines()
	cp.logger.InfoContext(ctx, "latency baselines reset after deployment",
		logger.DeploymentID(d.ID), logger.Version(d.Version))
}

// Flags returns the flag evaluator.
func (cp *ControlPlane) Flags() *feature.Evaluator { return cp.flags }

// Canary returns the canary controller.
func (cp *ControlPlane) Canary() *canary.Controller { return cp.canary }

// Detector returns the regression detector.
func (cp *ControlPlane) Detector() *regression.Detector { return cp.detector }

// IsEnabled reports whether flagName is on for the caller.
func (cp *ControlPlane) IsEnabled(ctx context.Context, flagName string, rc feature.RequestContext) bool {
	return cp.flags.IsEnabled(ctx, flagName, rc)
}

// RouteToCanary reports whether the caller should be served by the canary
// version. The answer is sticky per caller for a given stage.
func (cp *ControlPlane) RouteToCanary(rc feature.RequestContext) bool {
	return cp.canary.ShouldRouteToCanary(rc.Identifier())
}

// RecordOutcome feeds a finished request into the detector and the canary
// controller. Outcomes without a route skip the detector.
func (cp *ControlPlane) RecordOutcome(ctx context.Context, o Outcome) {
	if o.Route != "" {
		cp.detector.RecordLatency(ctx, o.Route, o.LatencyMs, o.IsError)
	}
	cp.canary.RecordRequest(ctx, o.IsCanary, o.LatencyMs, o.IsError)
}

// Collector exposes the control plane's state as Prometheus metrics.
func (cp *ControlPlane) Collector() prometheus.Collector {
	return metrics.NewCollector(cp.flags, cp.canary, cp.detector)
}

// Close persists pending deployment metrics and flushes unsaved flag
// changes.
func (cp *ControlPlane) Close(ctx context.Context) error {
	return errors.Join(cp.canary.Flush(ctx), cp.flags.Flush(ctx), cp.flags.Close())
}
