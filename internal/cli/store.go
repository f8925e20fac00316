package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Shivanand-hulikatti/eventreg/internal/config"
	"github.com/Shivanand-hulikatti/eventreg/internal/database"
	"github.com/Shivanand-hulikatti/eventreg/internal/repository"
)

// openStore connects the configured backend and, when migrate is set,
// brings its schema up to date. The returned func releases the connection.
func openStore(ctx context.Context, cfg config.DatabaseConfig, migrate bool, log *slog.Logger) (repository.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		log.Info("connected to postgres", slog.String("host", cfg.Host), slog.String("db", cfg.Name))
		if migrate {
			if err := database.MigratePostgres(ctx, pool, log); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repository.NewPostgresStore(pool), pool.Close, nil

	case config.DriverSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		log.Info("opened sqlite database", slog.String("path", cfg.SQLitePath))
		if migrate {
			if err := database.MigrateSQLite(ctx, db, log); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return repository.NewSQLiteStore(db), func() { _ = db.Close() }, nil

	case config.DriverMemory:
		log.Warn("using in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
}
