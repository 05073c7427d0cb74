// Package metrics exposes control-plane state to Prometheus.
//
// Collector reads flags, the active canary deployment and per-route latency
// statistics at scrape time:
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector(evaluator, controller, detector))
//	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package metrics
