// Command controlplane runs the progressive-delivery control plane as a
// standalone process: flag administration and canary control over an admin
// API, Prometheus metrics, health checks and the optional stage advancer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/togetheros/rollout"
	"github.com/togetheros/rollout/pkg/adminapi"
	"github.com/togetheros/rollout/pkg/alert"
	"github.com/togetheros/rollout/pkg/canary"
	"github.com/togetheros/rollout/pkg/config"
	"github.com/togetheros/rollout/pkg/environment"
	"github.com/togetheros/rollout/pkg/feature"
	"github.com/togetheros/rollout/pkg/httpserver"
	"github.com/togetheros/rollout/pkg/logger"
	"github.com/togetheros/rollout/pkg/pg"
	"github.com/togetheros/rollout/pkg/redis"
	"github.com/togetheros/rollout/pkg/regression"
	"github.com/togetheros/rollout/pkg/requestid"
)

type appConfig struct {
	Env       string `env:"APP_ENV" envDefault:"development"`
	Name      string `env:"APP_NAME" envDefault:"rollout-controlplane"`
	LogLevel  string `env:"LOG_LEVEL"`
	AdminAPI  bool   `env:"ADMIN_API_ENABLED" envDefault:"true"`
	AdminPath string `env:"ADMIN_API_PREFIX" envDefault:"/admin"`
}

func main() {
	var app appConfig
	config.MustLoad(&app)

	opts := []logger.Option{
		logger.WithEnvironment(app.Env, app.Name),
		logger.WithContextExtractors(requestid.LoggerExtractor(), environment.LoggerExtractor()),
	}
	if app.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(app.LogLevel)); err != nil {
			fmt.Fprintf(os.Stderr, "invalid LOG_LEVEL %q: %v\n", app.LogLevel, err)
			os.Exit(2)
		}
		opts = append(opts, logger.WithLevel(lvl))
	}
	log := logger.New(opts...)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, app, log); err != nil {
		log.Error("control plane stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, app appConfig, log *slog.Logger) error {
	var (
		flagCfg   feature.Config
		canaryCfg canary.Config
		regCfg    regression.Config
		alertCfg  alert.Config
		httpCfg   httpserver.Config
	)
	for _, load := range []func() error{
		func() error { return config.Load(&flagCfg) },
		func() error { return config.Load(&canaryCfg) },
		func() error { return config.Load(&regCfg) },
		func() error { return config.Load(&alertCfg) },
		func() error { return config.Load(&httpCfg) },
	} {
		if err := load(); err != nil {
			return err
		}
	}
	env := environment.Parse(app.Env)

	var checks []httpserver.Check

	var rdb *goredis.Client
	if flagCfg.Backend == feature.BackendRedis || canaryCfg.Backend == "redis" {
		var redisCfg redis.Config
		if err := config.Load(&redisCfg); err != nil {
			return err
		}
		client, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer client.Close()
		rdb = client
		checks = append(checks, httpserver.Check{Name: "redis", Ping: redis.Healthcheck(client)})
	}

	var pool *pgxpool.Pool
	if flagCfg.Backend == feature.BackendPostgres {
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return err
		}
		p, err := pg.Connect(ctx, pgCfg)
		if err != nil {
			return err
		}
		defer p.Close()
		if err := pg.Migrate(ctx, p, pgCfg, feature.Migrations, "migrations", log); err != nil {
			return err
		}
		pool = p
		checks = append(checks, httpserver.Check{Name: "postgres", Ping: pg.Healthcheck(p)})
	}

	var redisClient goredis.UniversalClient
	if rdb != nil {
		redisClient = rdb
	}
	flags, err := feature.NewProvider(flagCfg, redisClient, pool, log)
	if err != nil {
		return err
	}
	store, err := canary.NewStore(canaryCfg, redisClient, log)
	if err != nil {
		return err
	}
	stages, err := canaryCfg.Stages()
	if err != nil {
		return err
	}

	dispatcher, err := alert.NewFromConfig(alertCfg, log)
	if err != nil {
		return err
	}

	cp := rollout.New(ctx, flags, store,
		rollout.WithLogger(log),
		rollout.WithNotifier(dispatcher),
		rollout.WithRegressionConfig(regCfg),
		rollout.WithFeatureOptions(
			feature.WithCacheTTL(flagCfg.CacheTTL),
			feature.WithEnvironment(env),
		),
		rollout.WithCanaryOptions(
			canary.WithDefaultStages(stages),
			canary.WithHistoryLimit(canaryCfg.HistoryLimit),
		),
	)

	if flagCfg.SeedFile != "" {
		seed, err := feature.LoadSeedFile(flagCfg.SeedFile)
		if err != nil {
			return err
		}
		added, err := cp.Flags().Seed(ctx, seed)
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "feature flags seeded", logger.Path(flagCfg.SeedFile), slog.Int("added", added))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		cp.Collector(),
	)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", httpserver.LivenessHandler())
	r.Get("/readyz", httpserver.ReadinessHandler(log, 5*time.Second, checks...))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	if app.AdminAPI {
		r.With(requestid.Middleware, environment.Middleware(env)).
			Mount(app.AdminPath, adminapi.New(cp, log).Routes())
	}

	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.OnShutdown(cp.Close),
		httpserver.OnShutdown(dispatcher.Close),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, r) })
	if canaryCfg.AutoAdvance {
		advancer := canary.NewAdvancer(cp.Canary(), canaryCfg.AdvanceCheckInterval, log)
		g.Go(func() error { return advancer.Run(gctx) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("control plane: %w", err)
	}
	return nil
}
