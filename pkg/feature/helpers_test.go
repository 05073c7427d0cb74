package feature_test

import (
	"context"
	"sync"
	"time"

	"github.com/togetheros/rollout/pkg/feature"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// flakyProvider wraps a MemoryProvider and fails on demand.
type flakyProvider struct {
	*feature.MemoryProvider

	mu      sync.Mutex
	loadErr error
	saveErr error
	saves   int
}

func newFlakyProvider(flags ...*feature.Flag) *flakyProvider {
	mp, err := feature.NewMemoryProvider(flags...)
	if err != nil {
		panic(err)
	}
	return &flakyProvider{MemoryProvider: mp}
}

func (p *flakyProvider) Load(ctx context.Context) (feature.Document, error) {
	p.mu.Lock()
	err := p.loadErr
	p.mu.Unlock()
	if err != nil {
		return feature.Document{}, err
	}
	return p.MemoryProvider.Load(ctx)
}

func (p *flakyProvider) Save(ctx context.Context, doc feature.Document) error {
	p.mu.Lock()
	err := p.saveErr
	p.saves++
	p.mu.Unlock()
	if err != nil {
		return err
	}
	return p.MemoryProvider.Save(ctx, doc)
}

func (p *flakyProvider) failLoad(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadErr = err
}

func (p *flakyProvider) failSave(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saveErr = err
}
