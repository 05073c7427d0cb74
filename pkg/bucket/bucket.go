package bucket

import (
	"hash/fnv"
)

// Buckets is the number of slots identifiers are spread across.
// A percentage maps one-to-one onto a bucket boundary.
const Buckets = 100

// Anonymous is the identifier used when a request carries neither a user
// nor a session id. All anonymous traffic shares one bucket per namespace.
const Anonymous = "anonymous"

// Of returns the bucket in [0, Buckets) for identifier within namespace.
// The same pair always lands in the same bucket, across processes and restarts.
// Different namespaces decorrelate exposure: a user included in one flag's
// rollout says nothing about their inclusion in another's.
func Of(namespace, identifier string) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(namespace))
	_, _ = h.Write([]byte{':'})
	_, _ = h.Write([]byte(identifier))
	return int(mix(h.Sum64()) % Buckets)
}

// mix is the murmur3 64-bit finalizer. FNV alone leaves near-identical keys
// ("user-1", "user-2") clustered in the low digits.
func mix(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// Included reports whether identifier falls inside a rollout of percentage
// within namespace. Inclusion is bucket < percentage, so raising the
// percentage only ever adds identifiers, never removes them.
func Included(namespace, identifier string, percentage int) bool {
	if percentage <= 0 {
		return false
	}
	if percentage >= Buckets {
		return true
	}
	return Of(namespace, identifier) < percentage
}

// Identifier picks the sticky identifier for a request: the user id when
// known, else the session id, else Anonymous.
func Identifier(userID, sessionID string) string {
	if userID != "" {
		return userID
	}
	if sessionID != "" {
		return sessionID
	}
	return Anonymous
}

// ClampPercentage bounds p to [0, 100].
func ClampPercentage(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
