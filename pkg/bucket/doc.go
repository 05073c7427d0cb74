// Package bucket provides the deterministic bucketing primitive shared by
// feature-flag rollouts and canary traffic assignment.
//
// An identifier (user id, else session id, else "anonymous") is combined with a
// namespace (a flag name or a deployment id) and hashed with 64-bit FNV-1a (plus a murmur3 finalizer) into one of
// 100 buckets. A request is included in a rollout of P percent when its bucket
// is strictly below P.
//
// # Usage
//
//	id := bucket.Identifier(userID, sessionID)
//	if bucket.Included("new-checkout", id, 25) {
//		// 25% of identifiers, always the same ones
//	}
//
// Two properties follow directly from the construction:
//
//   - Stability: the same namespace and identifier always map to the same
//     bucket, so repeated evaluations never flip.
//   - Monotonic inclusion: raising the percentage from P1 to P2 keeps every
//     identifier that was included at P1.
package bucket
