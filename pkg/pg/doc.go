// Package pg connects to PostgreSQL with pgx/v5 and applies goose
// migrations.
//
// It backs the postgres flag store: feature.PostgresProvider reads and
// writes through the pool returned by Connect, and its schema ships as an
// embedded migration set applied with Migrate.
//
//	var cfg pg.Config
//	config.MustLoad(&cfg)
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, feature.Migrations, "migrations", log); err != nil {
//		return err
//	}
//
// Connect retries RetryAttempts times, waiting RetryInterval multiplied by
// the attempt number between tries. Healthcheck adapts the pool to a
// readiness check.
package pg
