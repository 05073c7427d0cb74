package rollout

import (
	"log/slog"
	"time"

	"github.com/togetheros/rollout/pkg/alert"
	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/regression"
)

// Option configures a ControlPlane.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	notifier    alert.Notifier
	now         func() time.Time
	regression  regression.Config
	featureOpts []feature.Option
	canaryOpts  []canary.Option
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithNotifier sets where canary and regression alerts go.
func WithNotifier(n alert.Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithClock overrides time.Now for every component.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRegressionConfig sets the detector thresholds.
func WithRegressionConfig(cfg regression.Config) Option {
	return func(o *options) { o.regression = cfg }
}

// WithFeatureOptions passes options through to the flag evaluator. They are
// applied after the shared logger and clock.
func WithFeatureOptions(opts ...feature.Option) Option {
	return func(o *options) { o.featureOpts = append(o.featureOpts, opts...) }
}

// WithCanaryOptions passes options through to the canary controller. They
// are applied after the shared logger, notifier and clock.
func WithCanaryOptions(opts ...canary.Option) Option {
	return func(o *options) { o.canaryOpts = append(o.canaryOpts, opts...) }
}
