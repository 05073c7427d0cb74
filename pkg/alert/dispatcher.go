package alert

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/togetheros/rollout/pkg/logger"
)

// Dispatcher is the Notifier the control plane talks to. It drops alerts
// below the minimum severity and delivers the rest to its sink on a
// background goroutine, so callers never wait on network I/O.
type Dispatcher struct {
	sink        Sink
	minSeverity Severity
	timeout     time.Duration
	logger      *slog.Logger
	now         func() time.Time

	inflight chan struct{}
	wg       sync.WaitGroup
	// mu orders wg.Add against the closed flag Close sets before waiting.
	mu     sync.Mutex
	closed bool
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMinSeverity drops alerts below s. Default is SeverityLow.
func WithMinSeverity(s Severity) DispatcherOption {
	return func(d *Dispatcher) {
		if s >= SeverityLow && s <= SeverityCritical {
			d.minSeverity = s
		}
	}
}

// WithDeliveryTimeout bounds one background delivery, retries included.
// Default is 30s.
func WithDeliveryTimeout(t time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithMaxInFlight caps concurrent deliveries; alerts beyond the cap are
// dropped and logged. Default is 64.
func WithMaxInFlight(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.inflight = make(chan struct{}, n)
		}
	}
}

// WithDispatcherLogger sets the logger used for delivery failures.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithDispatcherClock overrides time.Now for stamping alerts.
func WithDispatcherClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDispatcher returns a dispatcher delivering to sink.
func NewDispatcher(sink Sink, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sink:        sink,
		minSeverity: SeverityLow,
		timeout:     30 * time.Second,
		logger:      slog.Default(),
		now:         time.Now,
		inflight:    make(chan struct{}, 64),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("alert"))
	return d
}

// Notify schedules delivery of a and returns immediately.
func (d *Dispatcher) Notify(ctx context.Context, a Alert) {
	if a.Severity < d.minSeverity {
		return
	}
	if a.Time.IsZero() {
		a.Time = d.now()
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	select {
	case d.inflight <- struct{}{}:
	default:
		d.wg.Done()
		d.logger.WarnContext(ctx, "alert dropped, too many deliveries in flight",
			slog.String("title", a.Title), logger.Severity(a.Severity.String()))
		return
	}

	go func() {
		defer d.wg.Done()
		defer func() { <-d.inflight }()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if err := d.sink.Send(sendCtx, a); err != nil {
			d.logger.ErrorContext(sendCtx, "alert delivery failed",
				slog.String("title", a.Title),
				logger.Severity(a.Severity.String()),
				logger.Error(err))
		}
	}()
}

// Wait blocks until every scheduled delivery has finished. It must not run
// concurrently with Notify; use Close at shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close stops accepting alerts and waits for pending deliveries or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
