package bucket_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/bucket"
)

func TestOf(t *testing.T) {
	t.Parallel()

	t.Run("deterministic", func(t *testing.T) {
		t.Parallel()
		for i := range 100 {
			id := fmt.Sprintf("user-%d", i)
			assert.Equal(t, bucket.Of("flag", id), bucket.Of("flag", id))
		}
	})

	t.Run("in range", func(t *testing.T) {
		t.Parallel()
		for i := range 1000 {
			b := bucket.Of("ns", fmt.Sprintf("id-%d", i))
			require.GreaterOrEqual(t, b, 0)
			require.Less(t, b, bucket.Buckets)
		}
	})

	t.Run("namespaces decorrelate", func(t *testing.T) {
		t.Parallel()
		differ := 0
		for i := range 1000 {
			id := fmt.Sprintf("user-%d", i)
			if bucket.Of("flag-a", id) != bucket.Of("flag-b", id) {
				differ++
			}
		}
		// Independent namespaces should almost never agree.
		assert.Greater(t, differ, 900)
	})

	t.Run("reasonably uniform", func(t *testing.T) {
		t.Parallel()
		counts := make([]int, bucket.Buckets)
		const n = 100_000
		for i := range n {
			counts[bucket.Of("uniform", fmt.Sprintf("user-%d", i))]++
		}
		for b, c := range counts {
			assert.InDelta(t, n/bucket.Buckets, c, 250, "bucket %d", b)
		}
	})
}

func TestIncluded(t *testing.T) {
	t.Parallel()

	t.Run("bounds", func(t *testing.T) {
		t.Parallel()
		assert.False(t, bucket.Included("ns", "u", 0))
		assert.False(t, bucket.Included("ns", "u", -5))
		assert.True(t, bucket.Included("ns", "u", 100))
		assert.True(t, bucket.Included("ns", "u", 150))
	})

	t.Run("monotonic inclusion", func(t *testing.T) {
		t.Parallel()
		for i := range 2000 {
			id := fmt.Sprintf("user-%d", i)
			included := false
			for p := 0; p <= 100; p++ {
				now := bucket.Included("checkout", id, p)
				if included {
					require.True(t, now, "id %s dropped out at %d%%", id, p)
				}
				included = now
			}
		}
	})
}

func TestIdentifier(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		userID    string
		sessionID string
		want      string
	}{
		{"user wins", "u1", "s1", "u1"},
		{"session fallback", "", "s1", "s1"},
		{"anonymous", "", "", bucket.Anonymous},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, bucket.Identifier(tt.userID, tt.sessionID))
		})
	}
}

func TestClampPercentage(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 0, bucket.ClampPercentage(-1))
	assert.Equal(t, 42, bucket.ClampPercentage(42))
	assert.Equal(t, 100, bucket.ClampPercentage(101))
}
