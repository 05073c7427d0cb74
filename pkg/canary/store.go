package canary

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/togetheros/rollout/pkg/logger"
	"github.com/togetheros/rollout/pkg/statefile"
)

// Store persists controller state. Load of a missing store returns an empty
// State and no error.
type Store interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, s State) error
}

// MemoryStore keeps state in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	state State
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored state.
func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone(), nil
}

// Save stores a copy of s.
func (m *MemoryStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s.Clone()
	return nil
}

// DefaultStateFile is used when no path is configured.
const DefaultStateFile = "deploy-state.json"

// FileStore keeps state in a JSON file written atomically.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string, log *slog.Logger) *FileStore {
	if path == "" {
		path = DefaultStateFile
	}
	if log == nil {
		log = slog.Default()
	}
	return &FileStore{path: path, logger: log}
}

// Load reads the file. A corrupt file is logged and treated as empty.
func (f *FileStore) Load(ctx context.Context) (State, error) {
	var s State
	_, err := statefile.Read(f.path, &s)
	switch {
	case errors.Is(err, statefile.ErrCorrupt):
		f.logger.WarnContext(ctx, "deployment state file is corrupt, starting empty",
			logger.Path(f.path), logger.Error(err))
		return State{}, nil
	case err != nil:
		return State{}, errors.Join(ErrLoadFailed, err)
	}
	return s, nil
}

// Save writes s atomically.
func (f *FileStore) Save(_ context.Context, s State) error {
	if err := statefile.Write(f.path, s); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

// DefaultRedisKey is the key RedisStore uses when none is given.
const DefaultRedisKey = "togetheros:deploy-state"

type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps state as one JSON value, so a replacement instance picks
// up the deployment where the previous one left it.
type RedisStore struct {
	client redisClient
	key    string
	logger *slog.Logger
}

// NewRedisStore returns a store under key.
func NewRedisStore(client redisClient, key string, log *slog.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if log == nil {
		log = slog.Default()
	}
	return &RedisStore{client: client, key: key, logger: log}
}

// Load fetches the state. An undecodable value is logged and treated as
// empty.
func (r *RedisStore) Load(ctx context.Context) (State, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, errors.Join(ErrLoadFailed, err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		r.logger.WarnContext(ctx, "deployment state in redis is corrupt, starting empty",
			slog.String("key", r.key), logger.Error(err))
		return State{}, nil
	}
	return s, nil
}

// Save stores s without expiry.
func (r *RedisStore) Save(ctx context.Context, s State) error {
	data, err := json.Marshal(s)
	if err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	if err := r.client.Set(ctx, r.key, data, 0).Err(); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}
