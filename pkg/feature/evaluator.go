package feature

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/togetheros/rollout/pkg/bucket"
	"github.com/togetheros/rollout/pkg/environment"
	"github.com/togetheros/rollout/pkg/logger"
)

// snapshot is an immutable view of the flag set. It is replaced, never
// mutated, so readers can iterate it without locks.
type snapshot struct {
	doc      Document
	loadedAt time.Time
	// dirty marks in-memory changes the provider has not accepted yet.
	dirty bool
}

// Evaluator answers "is flag X on for this caller" against a cached snapshot
// of the provider's document. Safe for concurrent use.
type Evaluator struct {
	provider    Provider
	ttl         time.Duration
	env         environment.Environment
	now         func() time.Time
	logger      *slog.Logger
	syncRefresh bool

	snap atomic.Pointer[snapshot]
	// mu serializes refreshes and mutations.
	mu sync.Mutex
}

// NewEvaluator creates an evaluator and performs the initial load. A failed
// load is logged and leaves the evaluator with an empty flag set, so every
// flag evaluates to off until the next successful refresh.
func NewEvaluator(ctx context.Context, provider Provider, opts ...Option) *Evaluator {
	e := &Evaluator{
		provider: provider,
		ttl:      DefaultCacheTTL,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("feature"))

	doc, err := provider.Load(ctx)
	if err != nil {
		e.logger.WarnContext(ctx, "feature flags unavailable, starting empty", logger.Error(err))
		doc = NewDocument()
	}
	e.snap.Store(&snapshot{doc: sanitize(doc), loadedAt: e.now()})
	return e
}

// Evaluate returns whether flagName is on for rc and why. It never fails:
// unknown flags evaluate to {false, default}.
func (e *Evaluator) Evaluate(ctx context.Context, flagName string, rc RequestContext) Result {
	snap := e.current(ctx)
	return evaluate(snap.doc.Flags[flagName], evalInput{
		flag: flagName,
		rc:   rc,
		env:  e.environmentFor(ctx, rc),
	})
}

// IsEnabled is Evaluate(...).Enabled.
func (e *Evaluator) IsEnabled(ctx context.Context, flagName string, rc RequestContext) bool {
	return e.Evaluate(ctx, flagName, rc).Enabled
}

// EvaluateAll evaluates every known flag for rc.
func (e *Evaluator) EvaluateAll(ctx context.Context, rc RequestContext) map[string]Result {
	snap := e.current(ctx)
	env := e.environmentFor(ctx, rc)
	out := make(map[string]Result, len(snap.doc.Flags))
	for name, f := range snap.doc.Flags {
		out[name] = evaluate(f, evalInput{flag: name, rc: rc, env: env})
	}
	return out
}

// GetFlag returns a copy of the named flag.
func (e *Evaluator) GetFlag(ctx context.Context, flagName string) (*Flag, error) {
	f, ok := e.current(ctx).doc.Flags[flagName]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return f.Clone(), nil
}

// ListFlags returns copies of all flags sorted by name, optionally limited to
// flags carrying at least one of tags.
func (e *Evaluator) ListFlags(ctx context.Context, tags ...string) []*Flag {
	doc := e.current(ctx).doc
	out := make([]*Flag, 0, len(doc.Flags))
	for _, name := range doc.Names() {
		f := doc.Flags[name]
		if len(tags) > 0 && !slices.ContainsFunc(tags, func(t string) bool { return slices.Contains(f.Tags, t) }) {
			continue
		}
		out = append(out, f.Clone())
	}
	return out
}

// SetFlag creates or replaces a flag. The rollout percentage is clamped to
// [0, 100]. Creation time is preserved across updates.
func (e *Evaluator) SetFlag(ctx context.Context, flag *Flag) error {
	if flag == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag cannot be nil"))
	}
	if flag.Name == "" {
		return errors.Join(ErrInvalidFlag, errors.New("flag name cannot be empty"))
	}
	for _, r := range flag.Rules {
		if !r.Valid() {
			return errors.Join(ErrInvalidFlag, errors.New("invalid rule "+string(r.Kind)+"="+r.Value))
		}
	}

	return e.mutate(ctx, func(doc *Document, now time.Time) error {
		f := flag.Clone()
		f.normalize()
		f.UpdatedAt = now
		if existing, ok := doc.Flags[f.Name]; ok {
			f.CreatedAt = existing.CreatedAt
		} else if f.CreatedAt.IsZero() {
			f.CreatedAt = now
		}
		doc.Flags[f.Name] = f
		return nil
	})
}

// DeleteFlag removes a flag.
func (e *Evaluator) DeleteFlag(ctx context.Context, flagName string) error {
	return e.mutate(ctx, func(doc *Document, _ time.Time) error {
		if _, ok := doc.Flags[flagName]; !ok {
			return ErrFlagNotFound
		}
		delete(doc.Flags, flagName)
		return nil
	})
}

// UpdateRolloutPercentage changes a flag's percentage, clamped to [0, 100].
func (e *Evaluator) UpdateRolloutPercentage(ctx context.Context, flagName string, percentage int) error {
	return e.mutate(ctx, func(doc *Document, now time.Time) error {
		f, ok := doc.Flags[flagName]
		if !ok {
			return ErrFlagNotFound
		}
		f.RolloutPercentage = bucket.ClampPercentage(percentage)
		f.UpdatedAt = now
		return nil
	})
}

// Seed adds flags that do not exist yet and leaves existing ones untouched.
// It returns the number of flags added.
func (e *Evaluator) Seed(ctx context.Context, flags []*Flag) (int, error) {
	added := 0
	err := e.mutate(ctx, func(doc *Document, now time.Time) error {
		for _, flag := range flags {
			if flag == nil || flag.Name == "" {
				return errors.Join(ErrInvalidFlag, errors.New("seed flag must have a name"))
			}
			if _, ok := doc.Flags[flag.Name]; ok {
				continue
			}
			f := flag.Clone()
			f.normalize()
			f.CreatedAt, f.UpdatedAt = now, now
			doc.Flags[f.Name] = f
			added++
		}
		if added == 0 {
			return errNoChange
		}
		return nil
	})
	if errors.Is(err, errNoChange) {
		return 0, nil
	}
	return added, err
}

// Refresh reloads the document from the provider now. Pending in-memory
// changes are flushed instead of being overwritten.
func (e *Evaluator) Refresh(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshLocked(ctx)
}

// Version returns the revision of the snapshot currently served.
func (e *Evaluator) Version() int64 {
	return e.snap.Load().doc.Version
}

// Flush saves in-memory changes the provider rejected earlier. It is a no-op
// when there are none.
func (e *Evaluator) Flush(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := e.snap.Load()
	if !snap.dirty {
		return nil
	}
	if err := e.provider.Save(ctx, snap.doc); err != nil {
		return err
	}
	e.snap.Store(&snapshot{doc: snap.doc, loadedAt: snap.loadedAt})
	return nil
}

// Close closes the provider. Call Flush first to persist pending changes.
func (e *Evaluator) Close() error {
	return e.provider.Close()
}

var errNoChange = errors.New("no change")

// mutate applies fn to a copy of the current document, swaps it in and
// persists it. Persistence failures are logged; the in-memory change stands
// and is retried on the next refresh.
func (e *Evaluator) mutate(ctx context.Context, fn func(doc *Document, now time.Time) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	prev := e.snap.Load()
	doc := prev.doc.Clone()
	if err := fn(&doc, now); err != nil {
		return err
	}
	doc.Version++
	doc.LastUpdated = now

	next := &snapshot{doc: doc, loadedAt: now}
	if err := e.provider.Save(ctx, doc); err != nil {
		e.logger.ErrorContext(ctx, "failed to persist feature flags", logger.Error(err))
		next.dirty = true
	}
	e.snap.Store(next)
	return nil
}

// current returns the snapshot to evaluate against, triggering a refresh
// when it is older than the TTL. By default the refresh runs in the
// background and the stale snapshot is served meanwhile.
func (e *Evaluator) current(ctx context.Context) *snapshot {
	snap := e.snap.Load()
	if e.now().Sub(snap.loadedAt) < e.ttl {
		return snap
	}
	if !e.mu.TryLock() {
		return snap
	}
	if e.syncRefresh {
		defer e.mu.Unlock()
		if err := e.refreshLocked(ctx); err != nil {
			e.logger.WarnContext(ctx, "feature flag refresh failed", logger.Error(err))
		}
		return e.snap.Load()
	}
	go func() {
		defer e.mu.Unlock()
		bg := context.WithoutCancel(ctx)
		if err := e.refreshLocked(bg); err != nil {
			e.logger.WarnContext(bg, "feature flag refresh failed", logger.Error(err))
		}
	}()
	return snap
}

// refreshLocked must be called with e.mu held. On failure the previous
// snapshot stays in place with a fresh timestamp, so a broken store is
// retried once per TTL rather than on every evaluation.
func (e *Evaluator) refreshLocked(ctx context.Context) error {
	prev := e.snap.Load()
	now := e.now()

	if prev.dirty {
		if err := e.provider.Save(ctx, prev.doc); err != nil {
			e.snap.Store(&snapshot{doc: prev.doc, loadedAt: now, dirty: true})
			return err
		}
		e.snap.Store(&snapshot{doc: prev.doc, loadedAt: now})
		return nil
	}

	doc, err := e.provider.Load(ctx)
	if err != nil {
		e.snap.Store(&snapshot{doc: prev.doc, loadedAt: now})
		return err
	}
	e.snap.Store(&snapshot{doc: sanitize(doc), loadedAt: now})
	return nil
}

// environmentFor prefers the caller's explicit environment, then the one
// carried by ctx, then the evaluator default.
func (e *Evaluator) environmentFor(ctx context.Context, rc RequestContext) environment.Environment {
	if rc.Environment != "" {
		return rc.Environment
	}
	if env := environment.FromContext(ctx); env != "" {
		return env
	}
	return e.env
}

// sanitize drops unusable entries and clamps percentages so evaluation never
// sees out-of-range data from a hand-edited store.
func sanitize(doc Document) Document {
	if doc.Flags == nil {
		doc.Flags = make(map[string]*Flag)
	}
	for name, f := range doc.Flags {
		if f == nil {
			delete(doc.Flags, name)
			continue
		}
		if f.Name == "" {
			f.Name = name
		}
		f.normalize()
	}
	return doc
}
