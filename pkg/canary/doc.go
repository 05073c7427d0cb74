// Package canary runs staged canary deployments.
//
// A Deployment moves through a table of Stages (10% → 50% → 100% by
// default). Its lifecycle is
//
//	pending → in_progress ⇄ paused
//	in_progress → completed | rolled_back | failed
//	paused      → rolled_back | failed
//
// Only one deployment is unfinished at a time: Start rolls back whatever is
// running with reason "Superseded". Finished deployments are kept in a
// bounded history, newest first.
//
// ShouldRouteToCanary buckets the caller with the deployment id as
// namespace, so raising the stage percentage only adds callers to the
// canary. RecordRequest keeps cumulative counters and an exponential moving
// average of latency (alpha 0.05) per variant; the average stands in for a
// p95 and is only meant for coarse comparisons. Every tenth canary request
// compares the canary error rate with the stage's MaxErrorRate once
// MinRequests canary requests have been seen, and rolls back on breach.
//
// The controller never advances on its own. Call AdvanceStage, or run an
// Advancer, which advances once a stage's duration has elapsed and its
// request and error budgets are satisfied.
//
// State is persisted through a Store (memory, JSON file, Redis). Writes are
// best effort: failures are logged and the in-memory state stays
// authoritative. Request counters are written by Flush rather than on every
// request.
package canary
