// Package pg bootstraps PostgreSQL access on pgx/v5: a retrying pool
// constructor, goose migrations from an embedded filesystem, a health check
// closure and a couple of error classifiers.
//
// Typical startup:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, migrations.FS, cfg, slog.Default()); err != nil {
//	    return err
//	}
//
// Configuration comes from PG_* environment variables, see Config.
package pg
