package feature_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/logger"
)

func sampleDocument() feature.Document {
	doc := feature.NewDocument()
	doc.Version = 7
	doc.LastUpdated = time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	doc.Flags["new-checkout"] = &feature.Flag{
		Name:              "new-checkout",
		Enabled:           true,
		RolloutPercentage: 25,
		Rules:             []feature.Rule{{Kind: feature.RuleUser, Value: "alice"}},
		Tags:              []string{"checkout"},
	}
	return doc
}

func TestFileProvider(t *testing.T) {
	t.Parallel()

	t.Run("missing file is empty", func(t *testing.T) {
		t.Parallel()
		p := feature.NewFileProvider(filepath.Join(t.TempDir(), "flags.json"), logger.Discard())
		doc, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, doc.Flags)
		assert.NotNil(t, doc.Flags)
	})

	t.Run("save then load", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "nested", "flags.json")
		p := feature.NewFileProvider(path, logger.Discard())
		want := sampleDocument()
		require.NoError(t, p.Save(context.Background(), want))

		got, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, want.Version, got.Version)
		assert.True(t, want.LastUpdated.Equal(got.LastUpdated))
		assert.Equal(t, want.Flags["new-checkout"], got.Flags["new-checkout"])

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"rolloutPercentage": 25`)
		assert.Contains(t, string(raw), `"lastUpdated"`)
	})

	t.Run("corrupt file is empty", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "flags.json")
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		p := feature.NewFileProvider(path, logger.Discard())
		doc, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, doc.Flags)
	})

	t.Run("evaluator survives restart", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "flags.json")
		ctx := context.Background()

		first := feature.NewEvaluator(ctx, feature.NewFileProvider(path, logger.Discard()),
			feature.WithLogger(logger.Discard()))
		require.NoError(t, first.SetFlag(ctx, &feature.Flag{Name: "f", Enabled: true, RolloutPercentage: 40}))

		second := feature.NewEvaluator(ctx, feature.NewFileProvider(path, logger.Discard()),
			feature.WithLogger(logger.Discard()))
		got, err := second.GetFlag(ctx, "f")
		require.NoError(t, err)
		assert.Equal(t, 40, got.RolloutPercentage)
		assert.Equal(t, int64(1), second.Version())
	})
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStringCmd(ctx, "get", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	cmd := redis.NewStatusCmd(ctx, "set", key, value)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.data == nil {
		f.data = make(map[string]string)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	cmd.SetVal("OK")
	return cmd
}

func TestRedisProvider(t *testing.T) {
	t.Parallel()

	t.Run("missing key is empty", func(t *testing.T) {
		t.Parallel()
		p := feature.NewRedisProvider(&fakeRedis{}, "")
		doc, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Empty(t, doc.Flags)
	})

	t.Run("save then load", func(t *testing.T) {
		t.Parallel()
		client := &fakeRedis{}
		p := feature.NewRedisProvider(client, "flags")
		require.NoError(t, p.Save(context.Background(), sampleDocument()))
		assert.Contains(t, client.data, "flags")

		doc, err := p.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, int64(7), doc.Version)
		assert.Equal(t, 25, doc.Flags["new-checkout"].RolloutPercentage)
	})

	t.Run("errors are wrapped", func(t *testing.T) {
		t.Parallel()
		client := &fakeRedis{err: errors.New("connection refused")}
		p := feature.NewRedisProvider(client, "flags")
		_, err := p.Load(context.Background())
		assert.ErrorIs(t, err, feature.ErrLoadFailed)
		assert.ErrorIs(t, p.Save(context.Background(), sampleDocument()), feature.ErrSaveFailed)
	})

	t.Run("garbage value", func(t *testing.T) {
		t.Parallel()
		client := &fakeRedis{data: map[string]string{"flags": "nope"}}
		_, err := feature.NewRedisProvider(client, "flags").Load(context.Background())
		assert.ErrorIs(t, err, feature.ErrLoadFailed)
	})
}

func TestMemoryProvider(t *testing.T) {
	t.Parallel()

	_, err := feature.NewMemoryProvider(&feature.Flag{})
	assert.ErrorIs(t, err, feature.ErrInvalidFlag)

	p, err := feature.NewMemoryProvider(nil, &feature.Flag{Name: "f", RolloutPercentage: 300})
	require.NoError(t, err)
	doc, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, doc.Flags["f"].RolloutPercentage)
	assert.False(t, doc.Flags["f"].CreatedAt.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Load(ctx)
	assert.ErrorIs(t, err, feature.ErrLoadFailed)
}

func TestLoadSeed(t *testing.T) {
	t.Parallel()

	t.Run("file", func(t *testing.T) {
		t.Parallel()
		flags, err := feature.LoadSeedFile("testdata/seed.yaml")
		require.NoError(t, err)
		require.Len(t, flags, 2)
		assert.Equal(t, "new-checkout", flags[0].Name)
		assert.Equal(t, 25, flags[0].RolloutPercentage)
		assert.Equal(t, []string{"checkout"}, flags[0].Tags)
		assert.Equal(t, feature.RuleGroup, flags[1].Rules[0].Kind)
		assert.Equal(t, "staging", flags[1].Rules[1].Value)
	})

	t.Run("empty", func(t *testing.T) {
		t.Parallel()
		flags, err := feature.LoadSeed(strings.NewReader(""))
		require.NoError(t, err)
		assert.Empty(t, flags)
	})

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "flags:\n  - name: a\n    colour: red\n"},
		{"missing name", "flags:\n  - enabled: true\n"},
		{"duplicate", "flags:\n  - name: a\n  - name: a\n"},
		{"bad rule", "flags:\n  - name: a\n    rules:\n      - kind: planet\n        value: mars\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := feature.LoadSeed(strings.NewReader(tt.yaml))
			assert.ErrorIs(t, err, feature.ErrInvalidSeed)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := feature.LoadSeedFile("testdata/nope.yaml")
		assert.ErrorIs(t, err, feature.ErrInvalidSeed)
	})
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	p, err := feature.NewProvider(feature.Config{Backend: feature.BackendMemory}, nil, nil, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &feature.MemoryProvider{}, p)

	p, err = feature.NewProvider(feature.Config{Backend: feature.BackendFile, File: filepath.Join(t.TempDir(), "f.json")}, nil, nil, logger.Discard())
	require.NoError(t, err)
	assert.IsType(t, &feature.FileProvider{}, p)

	_, err = feature.NewProvider(feature.Config{Backend: feature.BackendRedis}, nil, nil, logger.Discard())
	assert.ErrorIs(t, err, feature.ErrUnknownBackend)

	_, err = feature.NewProvider(feature.Config{Backend: feature.BackendPostgres}, nil, nil, logger.Discard())
	assert.ErrorIs(t, err, feature.ErrUnknownBackend)

	_, err = feature.NewProvider(feature.Config{Backend: "etcd"}, nil, nil, logger.Discard())
	assert.ErrorIs(t, err, feature.ErrUnknownBackend)
}
