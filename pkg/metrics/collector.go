package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/regression"
)

// Namespace prefixes every exported metric.
const Namespace = "togetheros"

// FlagSource lists feature flags.
type FlagSource interface {
	ListFlags(ctx context.Context, tags ...string) []*feature.Flag
}

// DeploymentSource reports the unfinished canary deployment.
type DeploymentSource interface {
	Current() (*canary.Deployment, bool)
}

// RouteSource reports per-route latency statistics.
type RouteSource interface {
	All() []regression.Stats
}

var statuses = []canary.Status{
	canary.StatusPending,
	canary.StatusInProgress,
	canary.StatusPaused,
	canary.StatusCompleted,
	canary.StatusRolledBack,
	canary.StatusFailed,
}

// Collector is a prometheus.Collector that reads control-plane state at
// scrape time. Any source may be nil.
type Collector struct {
	flags       FlagSource
	deployments DeploymentSource
	routes      RouteSource

	flagEnabled *prometheus.Desc
	flagRollout *prometheus.Desc

	canaryInfo       *prometheus.Desc
	canaryPercentage *prometheus.Desc
	canaryStage      *prometheus.Desc
	canaryStatus     *prometheus.Desc
	canaryRequests   *prometheus.Desc
	canaryErrors     *prometheus.Desc
	canaryLatency    *prometheus.Desc

	routeP50      *prometheus.Desc
	routeP95      *prometheus.Desc
	routeP99      *prometheus.Desc
	routeBaseline *prometheus.Desc
	routeSamples  *prometheus.Desc
	routeRequests *prometheus.Desc
	routeErrors   *prometheus.Desc
}

// NewCollector returns a Collector over the given sources.
func NewCollector(flags FlagSource, deployments DeploymentSource, routes RouteSource) *Collector {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(Namespace, subsystem, name), help, labels, nil)
	}
	return &Collector{
		flags:       flags,
		deployments: deployments,
		routes:      routes,

		flagEnabled: desc("feature_flag", "enabled", "Whether the flag is enabled (1) or disabled (0).", "name"),
		flagRollout: desc("feature_flag", "rollout_percentage", "Configured percentage rollout of the flag.", "name"),

		canaryInfo:       desc("canary", "info", "Unfinished canary deployment, always 1.", "id", "version", "previous_version"),
		canaryPercentage: desc("canary", "percentage", "Share of traffic routed to the canary."),
		canaryStage:      desc("canary", "stage", "Zero-based index of the current canary stage."),
		canaryStatus:     desc("canary", "status", "1 for the status of the unfinished deployment, 0 otherwise.", "status"),
		canaryRequests:   desc("canary", "requests_total", "Requests observed during the current deployment.", "variant"),
		canaryErrors:     desc("canary", "errors_total", "Errors observed during the current deployment.", "variant"),
		canaryLatency:    desc("canary", "latency_p95_estimate_ms", "EMA estimate of p95 latency in milliseconds.", "variant"),

		routeP50:      desc("route", "latency_p50", "Windowed p50 latency in milliseconds.", "route"),
		routeP95:      desc("route", "latency_p95", "Windowed p95 latency in milliseconds.", "route"),
		routeP99:      desc("route", "latency_p99", "Windowed p99 latency in milliseconds.", "route"),
		routeBaseline: desc("route", "baseline_p95", "Frozen baseline p95 latency in milliseconds.", "route"),
		routeSamples:  desc("route", "window_samples", "Samples currently held in the route window.", "route"),
		routeRequests: desc("route", "requests_total", "Requests recorded for the route.", "route"),
		routeErrors:   desc("route", "errors_total", "Errors recorded for the route.", "route"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.flagEnabled, c.flagRollout,
		c.canaryInfo, c.canaryPercentage, c.canaryStage, c.canaryStatus,
		c.canaryRequests, c.canaryErrors, c.canaryLatency,
		c.routeP50, c.routeP95, c.routeP99, c.routeBaseline,
		c.routeSamples, c.routeRequests, c.routeErrors,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.flags != nil {
		c.collectFlags(ch)
	}
	if c.deployments != nil {
		c.collectCanary(ch)
	}
	if c.routes != nil {
		c.collectRoutes(ch)
	}
}

func (c *Collector) collectFlags(ch chan<- prometheus.Metric) {
	for _, f := range c.flags.ListFlags(context.Background()) {
		enabled := 0.0
		if f.Enabled {
			enabled = 1
		}
		ch <- prometheus.MustNewConstMetric(c.flagEnabled, prometheus.GaugeValue, enabled, f.Name)
		ch <- prometheus.MustNewConstMetric(c.flagRollout, prometheus.GaugeValue, float64(f.RolloutPercentage), f.Name)
	}
}

func (c *Collector) collectCanary(ch chan<- prometheus.Metric) {
	d, ok := c.deployments.Current()
	for _, s := range statuses {
		v := 0.0
		if ok && d.Status == s {
			v = 1
		}
		ch <- prometheus.MustNewConstMetric(c.canaryStatus, prometheus.GaugeValue, v, string(s))
	}
	if !ok {
		ch <- prometheus.MustNewConstMetric(c.canaryPercentage, prometheus.GaugeValue, 0)
		return
	}

	m := d.Metrics
	ch <- prometheus.MustNewConstMetric(c.canaryInfo, prometheus.GaugeValue, 1, d.ID, d.Version, d.PreviousVersion)
	ch <- prometheus.MustNewConstMetric(c.canaryPercentage, prometheus.GaugeValue, float64(d.CurrentPercentage))
	ch <- prometheus.MustNewConstMetric(c.canaryStage, prometheus.GaugeValue, float64(d.CurrentStageIndex))
	ch <- prometheus.MustNewConstMetric(c.canaryRequests, prometheus.CounterValue, float64(m.CanaryRequests), "canary")
	ch <- prometheus.MustNewConstMetric(c.canaryRequests, prometheus.CounterValue, float64(m.BaselineRequests), "baseline")
	ch <- prometheus.MustNewConstMetric(c.canaryErrors, prometheus.CounterValue, float64(m.CanaryErrors), "canary")
	ch <- prometheus.MustNewConstMetric(c.canaryErrors, prometheus.CounterValue, float64(m.BaselineErrors), "baseline")
	ch <- prometheus.MustNewConstMetric(c.canaryLatency, prometheus.GaugeValue, m.CanaryLatencyP95Estimate, "canary")
	ch <- prometheus.MustNewConstMetric(c.canaryLatency, prometheus.GaugeValue, m.BaselineLatencyP95Estimate, "baseline")
}

func (c *Collector) collectRoutes(ch chan<- prometheus.Metric) {
	for _, s := range c.routes.All() {
		ch <- prometheus.MustNewConstMetric(c.routeP50, prometheus.GaugeValue, s.P50, s.Route)
		ch <- prometheus.MustNewConstMetric(c.routeP95, prometheus.GaugeValue, s.P95, s.Route)
		ch <- prometheus.MustNewConstMetric(c.routeP99, prometheus.GaugeValue, s.P99, s.Route)
		ch <- prometheus.MustNewConstMetric(c.routeSamples, prometheus.GaugeValue, float64(s.Samples), s.Route)
		ch <- prometheus.MustNewConstMetric(c.routeRequests, prometheus.CounterValue, float64(s.TotalRequests), s.Route)
		ch <- prometheus.MustNewConstMetric(c.routeErrors, prometheus.CounterValue, float64(s.ErrorCount), s.Route)
		if s.Baseline != nil {
			ch <- prometheus.MustNewConstMetric(c.routeBaseline, prometheus.GaugeValue, s.Baseline.P95, s.Route)
		}
	}
}
