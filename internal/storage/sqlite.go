package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS search_log (
	person_id     TEXT NOT NULL,
	source_key    TEXT NOT NULL,
	searched_at   TIMESTAMP NOT NULL,
	result_count  INTEGER NOT NULL DEFAULT 0,
	had_error     BOOLEAN NOT NULL DEFAULT 0,
	error_message TEXT,
	UNIQUE (person_id, source_key)
);

CREATE INDEX IF NOT EXISTS idx_search_log_person ON search_log (person_id);
CREATE INDEX IF NOT EXISTS idx_search_log_source ON search_log (source_key);

CREATE TABLE IF NOT EXISTS staged_findings (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	person_id        TEXT NOT NULL,
	person_name      TEXT NOT NULL,
	source_key       TEXT NOT NULL,
	source_url       TEXT,
	extracted_record TEXT NOT NULL,
	match_score      REAL NOT NULL,
	search_params    TEXT,
	staged_at        TIMESTAMP NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
	reviewed_at      TIMESTAMP,
	notes            TEXT
);

CREATE INDEX IF NOT EXISTS idx_staged_findings_person ON staged_findings (person_id);
CREATE INDEX IF NOT EXISTS idx_staged_findings_status ON staged_findings (status);
CREATE INDEX IF NOT EXISTS idx_staged_findings_source ON staged_findings (source_key);

CREATE TABLE IF NOT EXISTS error_log (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	occurred_at TIMESTAMP NOT NULL,
	source_key  TEXT NOT NULL,
	error_type  TEXT NOT NULL,
	message     TEXT NOT NULL,
	query       TEXT,
	stack_trace TEXT
);

CREATE INDEX IF NOT EXISTS idx_error_log_source_type ON error_log (source_key, error_type);
CREATE INDEX IF NOT EXISTS idx_error_log_occurred_at ON error_log (occurred_at);
`

// openSQLite opens the embedded backend, creating the database file and its
// schema on first use (spec.md §4.2: "tables created on first use of each
// store").
func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = "genealogy-enrich.db"
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite serializes writers at the file level; a single connection avoids
	// "database is locked" errors under concurrent use.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	b := &backend{db: db, dialect: DialectSQLite, logger: logger}

	logger.Info("opened embedded store", slog.String("path", path))

	return b, nil
}

func (b *backend) ensureSchemaSQLite(ctx context.Context) error {
	if _, err := b.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create embedded schema: %w", err)
	}

	return nil
}
