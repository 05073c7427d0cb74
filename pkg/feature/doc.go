// Package feature evaluates feature flags for the progressive delivery
// control plane.
//
// A Flag is either off for everyone (Enabled false), on for callers matched
// by one of its Rules, or on for a sticky percentage of callers. Evaluation
// order is fixed:
//
//  1. unknown flag        -> {false, default}
//  2. flag disabled       -> {false, disabled}
//  3. first matching rule -> {true, rule}
//  4. caller's bucket < RolloutPercentage -> {true, percentage}
//  5. otherwise           -> {false, default}
//
// Buckets come from package bucket with the flag name as namespace, so a
// caller keeps their assignment across requests, instances and restarts, and
// raising a percentage only ever adds callers.
//
// # Storage
//
// The Evaluator serves a cached snapshot of a Document loaded from a
// Provider and reloads it once the snapshot is older than the cache TTL
// (30s by default). The reload runs in the background; a failing store keeps
// the last good snapshot. Mutations (SetFlag, DeleteFlag,
// UpdateRolloutPercentage) take effect in memory immediately and are then
// persisted; a failed save is logged and retried on the next refresh.
//
// Providers:
//
//   - MemoryProvider: process memory, for tests.
//   - FileProvider: feature-flags.json written atomically.
//   - RedisProvider: one JSON value shared by several instances.
//   - PostgresProvider: one row per flag; schema in Migrations.
//
// NewProvider selects one from Config (FLAGS_BACKEND). Seed flags can be
// loaded from YAML with LoadSeedFile and applied with Evaluator.Seed, which
// never overwrites existing definitions.
//
// # Usage
//
//	provider := feature.NewFileProvider("feature-flags.json", log)
//	flags := feature.NewEvaluator(ctx, provider, feature.WithLogger(log))
//
//	rc := feature.RequestContext{UserID: "user-42"}
//	if flags.IsEnabled(ctx, "new-checkout", rc) {
//		// ...
//	}
package feature
