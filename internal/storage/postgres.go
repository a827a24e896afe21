package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// openPostgres opens the networked backend. Schema management for this
// dialect lives in cmd/migrator, so EnsureSchema here is a defensive
// existence check rather than the source of truth for the tables.
func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	db, err := sql.Open("postgres", cfg.databaseURL())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	logger.Info("connected to networked store", slog.String("dsn", cfg.MaskDatabaseURL()))

	return &backend{db: db, dialect: DialectPostgres, logger: logger}, nil
}

// EnsureSchema on the Postgres dialect only verifies the migrated tables are
// reachable; it never creates them (cmd/migrator owns that).
func (b *backend) ensureSchemaPostgres(ctx context.Context) error {
	const probe = `SELECT 1 FROM search_log LIMIT 1`

	_, err := b.db.ExecContext(ctx, probe)
	if err != nil {
		return fmt.Errorf("networked store missing expected schema, run the migrator: %w", err)
	}

	return nil
}
