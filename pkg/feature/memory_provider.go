package feature

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryProvider keeps the flag document in process memory. It suits tests
// and single-instance deployments that seed flags at startup.
type MemoryProvider struct {
	mu  sync.RWMutex
	doc Document
}

// NewMemoryProvider creates a provider holding initialFlags.
func NewMemoryProvider(initialFlags ...*Flag) (*MemoryProvider, error) {
	doc := NewDocument()
	now := time.Now()
	for _, flag := range initialFlags {
		if flag == nil {
			continue
		}
		if flag.Name == "" {
			return nil, errors.Join(ErrInvalidFlag, errors.New("flag name cannot be empty"))
		}
		f := flag.Clone()
		f.normalize()
		if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		if f.UpdatedAt.IsZero() {
			f.UpdatedAt = f.CreatedAt
		}
		doc.Flags[f.Name] = f
	}
	return &MemoryProvider{doc: doc}, nil
}

// Load returns a copy of the stored document.
func (p *MemoryProvider) Load(ctx context.Context) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, errors.Join(ErrLoadFailed, err)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc.Clone(), nil
}

// Save replaces the stored document with a copy of doc.
func (p *MemoryProvider) Save(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.doc = doc.Clone()
	return nil
}

// Close is a no-op.
func (p *MemoryProvider) Close() error {
	return nil
}
