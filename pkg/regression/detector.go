package regression

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/togetheros/rollout/pkg/alert"
	"github.com/togetheros/rollout/pkg/logger"
)

// routeStats is the per-route state. Its fields are guarded by mu.
type routeStats struct {
	mu        sync.Mutex
	win       *window
	baseline  *Baseline
	lastAlert time.Time
	lastLevel Level
	total     int64
	errors    int64
}

// Detector keeps a rolling latency window per route, freezes a baseline once
// enough samples arrive and raises alerts when the current p95 drifts above
// it. Routes are created lazily on their first sample.
type Detector struct {
	cfg    Config
	alerts alert.Notifier
	logger *slog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	routes map[string]*routeStats
}

// NewDetector returns a Detector. Zero config fields take their defaults.
func NewDetector(cfg Config, opts ...Option) *Detector {
	d := &Detector{
		cfg:    cfg.withDefaults(),
		alerts: alert.Nop,
		logger: slog.Default(),
		now:    time.Now,
		routes: make(map[string]*routeStats),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With(logger.Component("regression"))
	return d
}

// Config returns the effective configuration.
func (d *Detector) Config() Config { return d.cfg }

func (d *Detector) route(name string) *routeStats {
	d.mu.RLock()
	rs, ok := d.routes[name]
	d.mu.RUnlock()
	if ok {
		return rs
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if rs, ok = d.routes[name]; !ok {
		rs = &routeStats{win: newWindow(d.cfg.WindowSize)}
		d.routes[name] = rs
	}
	return rs
}

// RecordLatency adds one observation for route. It returns the level of the
// alert raised by this sample, or "" when none fired.
func (d *Detector) RecordLatency(ctx context.Context, route string, latencyMs float64, isError bool) Level {
	if latencyMs < 0 {
		latencyMs = 0
	}
	now := d.now()
	rs := d.route(route)

	rs.mu.Lock()
	rs.win.add(sample{latencyMs: latencyMs, at: now})
	rs.total++
	if isError {
		rs.errors++
	}
	if rs.win.n < d.cfg.MinimumSamples {
		rs.mu.Unlock()
		return ""
	}

	sorted := rs.win.sorted()
	if rs.baseline == nil {
		rs.baseline = &Baseline{
			P50:           Percentile(sorted, 50),
			P95:           Percentile(sorted, 95),
			P99:           Percentile(sorted, 99),
			EstablishedAt: now,
		}
		b := *rs.baseline
		rs.mu.Unlock()
		d.logger.DebugContext(ctx, "latency baseline established",
			logger.Route(route), slog.Float64("p95", b.P95))
		return ""
	}

	if !rs.lastAlert.IsZero() && now.Sub(rs.lastAlert) < d.cfg.AlertCooldown {
		rs.mu.Unlock()
		return ""
	}

	p95 := Percentile(sorted, 95)
	base := rs.baseline.P95
	if base <= 0 {
		rs.mu.Unlock()
		return ""
	}
	ratio := p95 / base

	var level Level
	switch {
	case ratio >= d.cfg.CriticalThreshold:
		level = LevelCritical
	case ratio >= d.cfg.WarningThreshold:
		level = LevelWarning
	default:
		rs.mu.Unlock()
		return ""
	}
	rs.lastAlert = now
	rs.lastLevel = level
	rs.mu.Unlock()

	d.raise(ctx, route, level, p95, base, ratio, now)
	return level
}

func (d *Detector) raise(ctx context.Context, route string, level Level, p95, base, ratio float64, at time.Time) {
	sev := alert.SeverityMedium
	if level == LevelCritical {
		sev = alert.SeverityCritical
	}
	d.logger.WarnContext(ctx, "latency regression detected",
		logger.Route(route),
		logger.Severity(string(level)),
		slog.Float64("p95", p95),
		slog.Float64("baseline_p95", base),
		slog.Float64("ratio", ratio))

	d.alerts.Notify(ctx, alert.Alert{
		Severity: sev,
		Title:    fmt.Sprintf("Latency regression on %s", route),
		Message:  fmt.Sprintf("p95 is %.1fms, %.2fx the baseline of %.1fms", p95, ratio, base),
		Time:     at,
		Metadata: map[string]any{
			"route":        route,
			"level":        string(level),
			"p95_ms":       p95,
			"baseline_p95": base,
			"ratio":        ratio,
		},
	})
}

// ResetBaseline clears route's window, baseline and cooldown so the next
// samples establish a fresh baseline. Lifetime request and error totals are
// kept. Unknown routes are ignored.
func (d *Detector) ResetBaseline(route string) {
	d.mu.RLock()
	rs, ok := d.routes[route]
	d.mu.RUnlock()
	if ok {
		rs.reset()
	}
}

// ResetAllBaselines resets every known route.
func (d *Detector) ResetAllBaselines() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rs := range d.routes {
		rs.reset()
	}
}

func (rs *routeStats) reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.win.reset()
	rs.baseline = nil
	rs.lastAlert = time.Time{}
	rs.lastLevel = ""
}

// Stats reports route's current statistics.
func (d *Detector) Stats(route string) (Stats, bool) {
	d.mu.RLock()
	rs, ok := d.routes[route]
	d.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return rs.stats(route), true
}

// All returns statistics for every known route, ordered by route.
func (d *Detector) All() []Stats {
	d.mu.RLock()
	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	d.mu.RUnlock()
	slices.Sort(names)

	out := make([]Stats, 0, len(names))
	for _, name := range names {
		if s, ok := d.Stats(name); ok {
			out = append(out, s)
		}
	}
	return out
}

// Routes returns the known route names, sorted.
func (d *Detector) Routes() []string {
	d.mu.RLock()
	names := make([]string, 0, len(d.routes))
	for name := range d.routes {
		names = append(names, name)
	}
	d.mu.RUnlock()
	slices.Sort(names)
	return names
}

func (rs *routeStats) stats(route string) Stats {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	sorted := rs.win.sorted()
	s := Stats{
		Route:         route,
		Samples:       rs.win.n,
		Mean:          rs.win.mean(),
		StdDev:        rs.win.stddev(),
		P50:           Percentile(sorted, 50),
		P95:           Percentile(sorted, 95),
		P99:           Percentile(sorted, 99),
		TotalRequests: rs.total,
		ErrorCount:    rs.errors,
		LastAlertAt:   rs.lastAlert,
		LastAlert:     rs.lastLevel,
	}
	if rs.baseline != nil {
		b := *rs.baseline
		s.Baseline = &b
	}
	return s
}
