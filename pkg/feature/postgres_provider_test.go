package feature_test

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/logger"
)

type pgRow struct {
	definition []byte
	revision   int64
	updatedAt  time.Time
}

// fakePG keeps feature_flags rows in memory. Only the statements the
// provider issues are understood.
type fakePG struct {
	mu        sync.Mutex
	rows      map[string]pgRow
	pruneArgs []any
	beginErr  error
}

func newFakePG() *fakePG {
	return &fakePG{rows: make(map[string]pgRow)}
}

func (f *fakePG) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeRows{}
	for _, name := range slices.Sorted(maps.Keys(f.rows)) {
		r.names = append(r.names, name)
		r.data = append(r.data, f.rows[name])
	}
	r.idx = -1
	return r, nil
}

func (f *fakePG) Begin(_ context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &fakeTx{db: f, staged: maps.Clone(f.rows)}, nil
}

func (f *fakePG) lastPruneArg() any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pruneArgs) == 0 {
		return nil
	}
	return f.pruneArgs[len(f.pruneArgs)-1]
}

func (f *fakePG) rowNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Sorted(maps.Keys(f.rows))
}

type fakeTx struct {
	pgx.Tx
	db     *fakePG
	staged map[string]pgRow
}

func (tx *fakeTx) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	tx.db.mu.Lock()
	tx.db.pruneArgs = append(tx.db.pruneArgs, args[0])
	tx.db.mu.Unlock()

	keep, ok := args[0].([]string)
	if !ok || keep == nil {
		// NOT (name = ANY(NULL)) is NULL for every row.
		return pgconn.CommandTag{}, nil
	}
	for name := range tx.staged {
		if !slices.Contains(keep, name) {
			delete(tx.staged, name)
		}
	}
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) SendBatch(_ context.Context, b *pgx.Batch) pgx.BatchResults {
	for _, q := range b.QueuedQueries {
		tx.staged[q.Arguments[0].(string)] = pgRow{
			definition: q.Arguments[1].([]byte),
			revision:   q.Arguments[2].(int64),
			updatedAt:  q.Arguments[3].(time.Time),
		}
	}
	return fakeBatchResults{}
}

func (tx *fakeTx) Commit(_ context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.rows = tx.staged
	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error { return nil }

type fakeBatchResults struct{ pgx.BatchResults }

func (fakeBatchResults) Close() error { return nil }

type fakeRows struct {
	pgx.Rows
	names []string
	data  []pgRow
	idx   int
}

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.names)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.idx]
	*dest[0].(*string) = r.names[r.idx]
	*dest[1].(*[]byte) = row.definition
	*dest[2].(*int64) = row.revision
	*dest[3].(*time.Time) = row.updatedAt
	return nil
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close() {}

func TestPostgresProvider(t *testing.T) {
	t.Parallel()

	t.Run("empty table", func(t *testing.T) {
		t.Parallel()
		doc, err := feature.NewPostgresProvider(newFakePG()).Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, doc.Flags)
		assert.NotNil(t, doc.Flags)
	})

	t.Run("save then load", func(t *testing.T) {
		t.Parallel()
		db := newFakePG()
		p := feature.NewPostgresProvider(db)
		want := sampleDocument()
		require.NoError(t, p.Save(context.Background(), want))

		got, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), got.Version)
		assert.True(t, want.LastUpdated.Equal(got.LastUpdated))
		assert.Equal(t, want.Flags["new-checkout"], got.Flags["new-checkout"])
	})

	t.Run("save prunes removed flags", func(t *testing.T) {
		t.Parallel()
		db := newFakePG()
		p := feature.NewPostgresProvider(db)
		doc := sampleDocument()
		doc.Flags["dark-mode"] = &feature.Flag{Name: "dark-mode", Enabled: true, RolloutPercentage: 100}
		require.NoError(t, p.Save(context.Background(), doc))
		require.Equal(t, []string{"dark-mode", "new-checkout"}, db.rowNames())

		delete(doc.Flags, "dark-mode")
		require.NoError(t, p.Save(context.Background(), doc))
		assert.Equal(t, []string{"new-checkout"}, db.rowNames())
	})

	t.Run("saving an empty document removes every row", func(t *testing.T) {
		t.Parallel()
		db := newFakePG()
		p := feature.NewPostgresProvider(db)
		require.NoError(t, p.Save(context.Background(), sampleDocument()))

		require.NoError(t, p.Save(context.Background(), feature.NewDocument()))
		arg, ok := db.lastPruneArg().([]string)
		require.True(t, ok)
		assert.NotNil(t, arg, "an empty name list must not be sent as NULL")
		assert.Empty(t, db.rowNames())
	})

	t.Run("begin failure", func(t *testing.T) {
		t.Parallel()
		db := newFakePG()
		db.beginErr = errors.New("connection refused")
		err := feature.NewPostgresProvider(db).Save(context.Background(), sampleDocument())
		assert.ErrorIs(t, err, feature.ErrSaveFailed)
	})
}

func TestEvaluator_DeleteLastFlagWithPostgres(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	db := newFakePG()
	p := feature.NewPostgresProvider(db)
	require.NoError(t, p.Save(ctx, sampleDocument()))

	clk := newFakeClock()
	e := feature.NewEvaluator(ctx, p,
		feature.WithClock(clk.Now),
		feature.WithCacheTTL(time.Second),
		feature.WithSynchronousRefresh(),
		feature.WithLogger(logger.Discard()),
	)
	require.True(t, e.IsEnabled(ctx, "new-checkout", feature.RequestContext{UserID: "alice"}))

	require.NoError(t, e.DeleteFlag(ctx, "new-checkout"))
	assert.Empty(t, db.rowNames())

	clk.Advance(2 * time.Second)
	require.NoError(t, e.Refresh(ctx))
	_, err := e.GetFlag(ctx, "new-checkout")
	assert.ErrorIs(t, err, feature.ErrFlagNotFound)
	assert.False(t, e.IsEnabled(ctx, "new-checkout", feature.RequestContext{UserID: "alice"}))
}
