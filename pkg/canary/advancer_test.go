package canary_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/logger"
)

func TestAdvancer(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	store := canary.NewMemoryStore()
	ctx := context.Background()
	c := canary.NewController(ctx, store, canary.WithLogger(logger.Discard()), canary.WithClock(clock.Now))
	_, err := c.Start(ctx, "v1", []canary.Stage{
		{Percentage: 25, DurationSeconds: 30, MinRequests: 5, MaxErrorRate: 0.2},
		{Percentage: 100, DurationSeconds: 30, MinRequests: 5, MaxErrorRate: 0.2},
	})
	require.NoError(t, err)

	a := canary.NewAdvancer(c, time.Millisecond, logger.Discard())
	for range 5 {
		c.RecordRequest(ctx, true, 10, false)
	}

	a.Tick(ctx)
	assert.Equal(t, 25, c.CurrentPercentage(), "stage duration not elapsed")
	stored, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stored.Current.Metrics.CanaryRequests, "tick flushes counters")

	clock.Advance(31 * time.Second)
	a.Tick(ctx)
	assert.Equal(t, 100, c.CurrentPercentage())

	clock.Advance(31 * time.Second)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- a.Run(runCtx) }()

	require.Eventually(t, func() bool { return len(c.History()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, canary.StatusCompleted, c.History()[0].Status)
}
