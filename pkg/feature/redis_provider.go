package feature

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key the flag document is stored under.
const DefaultRedisKey = "togetheros:feature-flags"

// redisClient is the subset of redis.UniversalClient the provider needs.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisProvider stores the flag document as a single JSON value so several
// control plane instances can share one flag set.
type RedisProvider struct {
	client redisClient
	key    string
}

// NewRedisProvider returns a provider storing the document under key.
func NewRedisProvider(client redisClient, key string) *RedisProvider {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisProvider{client: client, key: key}
}

// Load fetches and decodes the document. A missing key yields an empty
// document.
func (p *RedisProvider) Load(ctx context.Context) (Document, error) {
	data, err := p.client.Get(ctx, p.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return NewDocument(), nil
	}
	if err != nil {
		return Document{}, errors.Join(ErrLoadFailed, err)
	}

	doc := NewDocument()
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, errors.Join(ErrLoadFailed, err)
	}
	if doc.Flags == nil {
		doc.Flags = make(map[string]*Flag)
	}
	return doc, nil
}

// Save encodes and stores the document without expiry.
func (p *RedisProvider) Save(ctx context.Context, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	if err := p.client.Set(ctx, p.key, data, 0).Err(); err != nil {
		return errors.Join(ErrSaveFailed, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (p *RedisProvider) Close() error {
	return nil
}
