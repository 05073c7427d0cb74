// Package rollout is a progressive-delivery control plane.
//
// A ControlPlane answers two questions before a request is handled, and
// learns from every request once it is done:
//
//   - is this feature flag on for the caller? (pkg/feature)
//   - should the caller see the canary version? (pkg/canary)
//
// Finished requests are reported with RecordOutcome. The canary controller
// rolls a deployment back when its error rate breaches the current stage's
// budget, and the regression detector (pkg/regression) alerts when a route's
// p95 latency drifts above its baseline.
//
//	cp := rollout.New(ctx, flagProvider, deployStore,
//		rollout.WithLogger(log),
//		rollout.WithNotifier(dispatcher),
//	)
//	defer cp.Close(context.Background())
//
//	rc := feature.RequestContext{UserID: userID, Route: "/api/feed"}
//	if cp.IsEnabled(ctx, "new-feed", rc) {
//		// ...
//	}
//	canary := cp.RouteToCanary(rc)
//	// serve the request
//	cp.RecordOutcome(ctx, rollout.Outcome{
//		Route:     rc.Route,
//		LatencyMs: float64(elapsed.Milliseconds()),
//		IsError:   status >= 500,
//		IsCanary:  canary,
//	})
//
// Flag decisions and canary assignment are independent: a caller can be in a
// flag's rollout and outside the canary, or the reverse.
package rollout
