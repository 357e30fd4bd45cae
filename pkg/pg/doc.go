// Package pg provides PostgreSQL connectivity for the queue store using the
// pgx/v5 driver: connection pooling with startup retries, goose migrations,
// health checks and error classification helpers.
//
// # Architecture
//
//   - Config is populated from environment variables via
//     github.com/caarlos0/env. It controls pool limits, health-check cadence
//     and the migrations table.
//
//   - Connect opens a *pgxpool.Pool, retrying with a growing delay until the
//     database becomes available.
//
//   - Migrate runs goose migrations from a directory on disk. MigrateFS runs
//     migrations embedded in the binary, which is how the queue package ships
//     its schema.
//
// # Usage
//
//	var cfg pg.Config
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.MigrateFS(ctx, pool, migrations.FS, cfg, slog.Default()); err != nil {
//		return err
//	}
//
// # Error Handling
//
// IsNotFoundError and IsDuplicateKeyError unwrap
// pgx errors so storage code can map them to domain errors.
package pg
