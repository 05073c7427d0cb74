// Package config loads typed configuration from environment variables.
//
// It wraps github.com/caarlos0/env/v11 for struct-tag parsing and
// github.com/joho/godotenv for optional .env files. Every control-plane
// package exposes its own Config struct; the process entrypoint loads them
// with Load or MustLoad:
//
//	var flags feature.Config
//	config.MustLoad(&flags)
//
// Load caches one parsed value per configuration type for the lifetime of
// the process. Parse bypasses the cache and is what tests should use
// together with t.Setenv. ResetCache clears the cache.
package config
