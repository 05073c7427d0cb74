package feature

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Backend names a flag storage backend.
type Backend string

const (
	BackendMemory   Backend = "memory"
	BackendFile     Backend = "file"
	BackendRedis    Backend = "redis"
	BackendPostgres Backend = "postgres"
)

// Config holds flag storage settings.
type Config struct {
	Backend  Backend       `env:"FLAGS_BACKEND" envDefault:"file"`
	File     string        `env:"FLAGS_FILE" envDefault:"feature-flags.json"`
	RedisKey string        `env:"FLAGS_REDIS_KEY" envDefault:"togetheros:feature-flags"`
	CacheTTL time.Duration `env:"FLAGS_CACHE_TTL" envDefault:"30s"`
	SeedFile string        `env:"FLAGS_SEED_FILE"`
}

// NewProvider builds the provider selected by cfg.Backend. rdb and db are
// only consulted by the backends that need them and may be nil otherwise.
func NewProvider(cfg Config, rdb redis.UniversalClient, db *pgxpool.Pool, log *slog.Logger) (Provider, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryProvider()
	case BackendFile, "":
		return NewFileProvider(cfg.File, log), nil
	case BackendRedis:
		if rdb == nil {
			return nil, errors.Join(ErrUnknownBackend, errors.New("redis backend requires a redis client"))
		}
		return NewRedisProvider(rdb, cfg.RedisKey), nil
	case BackendPostgres:
		if db == nil {
			return nil, errors.Join(ErrUnknownBackend, errors.New("postgres backend requires a connection pool"))
		}
		return NewPostgresProvider(db), nil
	default:
		return nil, errors.Join(ErrUnknownBackend, fmt.Errorf("%q", cfg.Backend))
	}
}
