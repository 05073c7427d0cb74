// Package regression detects per-route latency regressions.
//
// Each route keeps a bounded window of recent latencies. Once the window
// holds Config.MinimumSamples samples its p50/p95/p99 are frozen as the
// route's baseline. Every later sample compares the window's p95 against the
// baseline p95 and raises a warning or critical alert when the ratio crosses
// the configured thresholds. A cooldown stops repeated alerts for the same
// route.
//
// Percentiles use the nearest-rank method over the sorted window, see
// Percentile.
//
// Baselines describe one release. Call ResetAllBaselines once a deployment
// completes so the new version is measured against itself:
//
//	det := regression.NewDetector(regression.DefaultConfig(),
//		regression.WithNotifier(dispatcher),
//	)
//	ctrl := canary.NewController(ctx, store,
//		canary.OnComplete(func(context.Context, *canary.Deployment) {
//			det.ResetAllBaselines()
//		}),
//	)
package regression
