// Package redis connects to Redis with go-redis/v9.
//
// The control plane keeps two JSON documents in Redis when configured to:
// the feature-flag set (feature.RedisProvider) and the canary deployment
// state (canary.RedisStore). Both share the client returned by Connect.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	rdb, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer rdb.Close()
//
// Healthcheck adapts a client to a readiness check.
package redis
