package httpserver

import (
	"context"
	"log/slog"
	"time"
)

// Option configures the HTTP server.
type Option func(*config)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	if addr == "" {
		panic("WithAddr: addr cannot be empty")
	}
	return func(c *config) { c.addr = addr }
}

func WithReadTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithReadTimeout: duration must be > 0")
	}
	return func(c *config) { c.readTimeout = d }
}

func WithWriteTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithWriteTimeout: duration must be > 0")
	}
	return func(c *config) { c.writeTimeout = d }
}

func WithIdleTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithIdleTimeout: duration must be > 0")
	}
	return func(c *config) { c.idleTimeout = d }
}

// WithShutdownTimeout bounds graceful shutdown, including OnShutdown hooks.
func WithShutdownTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("WithShutdownTimeout: duration must be > 0")
	}
	return func(c *config) { c.shutdownTimeout = d }
}

// WithLogger sets the server logger. Default discards.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// OnStart registers a callback that receives the bound address once the
// listener is open.
func OnStart(fn func(addr string)) Option {
	if fn == nil {
		panic("OnStart: nil hook")
	}
	return func(c *config) { c.startHooks = append(c.startHooks, fn) }
}

// OnShutdown registers a callback run after the listener stops accepting
// requests, in registration order. Hook errors are logged and returned from
// Shutdown.
func OnShutdown(fn func(context.Context) error) Option {
	if fn == nil {
		panic("OnShutdown: nil hook")
	}
	return func(c *config) { c.stopHooks = append(c.stopHooks, fn) }
}
