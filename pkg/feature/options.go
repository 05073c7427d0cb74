package feature

import (
	"log/slog"
	"time"

	"github.com/togetheros/rollout/pkg/environment"
)

// DefaultCacheTTL bounds how stale an instance's view of a shared store may be.
const DefaultCacheTTL = 30 * time.Second

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithCacheTTL sets how long a loaded snapshot is served before it is
// refreshed from the provider. Non-positive values are ignored.
func WithCacheTTL(ttl time.Duration) Option {
	return func(e *Evaluator) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for persistence failures.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEnvironment sets the environment used by environment rules when the
// evaluation context does not carry one.
func WithEnvironment(env environment.Environment) Option {
	return func(e *Evaluator) {
		e.env = env
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) {
		if now != nil {
			e.now = now
		}
	}
}

// WithSynchronousRefresh makes an expired snapshot reload inline on the
// evaluating goroutine instead of in the background.
func WithSynchronousRefresh() Option {
	return func(e *Evaluator) {
		e.syncRefresh = true
	}
}
