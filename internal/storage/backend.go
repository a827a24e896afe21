// Package storage provides a dialect-agnostic SQL backend abstraction over
// an embedded SQLite file store and a networked PostgreSQL store, sharing
// one schema (search_log, staged_findings, error_log) across both.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Dialect distinguishes the two supported SQL engines.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// ErrUnsupportedDatabaseType is returned by Open for an unrecognized Config.Type.
var ErrUnsupportedDatabaseType = errors.New("unsupported database type")

// Backend is the small verb set the rest of the application programs
// against: execute, fetch-all, fetch-one, close. Queries are written once
// using "?" placeholders and the backend's Rebind translates them to the
// dialect in use.
type Backend interface {
	Dialect() Dialect
	DB() *sql.DB
	Rebind(query string) string
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	EnsureSchema(ctx context.Context) error
	Close() error
}

// backend is the shared implementation; only dialect-specific DDL/driver
// selection differs between the two constructors below.
type backend struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func (b *backend) Dialect() Dialect { return b.dialect }
func (b *backend) DB() *sql.DB      { return b.db }

// Rebind converts a query written with "?" placeholders into the dialect's
// native placeholder style. SQLite accepts "?" natively; Postgres requires
// "$1", "$2", ... in positional order.
func (b *backend) Rebind(query string) string {
	if b.dialect != DialectPostgres {
		return query
	}

	var sb strings.Builder

	argIdx := 1

	for _, r := range query {
		if r == '?' {
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(argIdx))
			argIdx++

			continue
		}

		sb.WriteRune(r)
	}

	return sb.String()
}

func (b *backend) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return b.db.ExecContext(ctx, b.Rebind(query), args...)
}

func (b *backend) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return b.db.QueryContext(ctx, b.Rebind(query), args...)
}

func (b *backend) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return b.db.QueryRowContext(ctx, b.Rebind(query), args...)
}

func (b *backend) Close() error {
	return b.db.Close()
}

// EnsureSchema is idempotent and safe to call on every startup. For the
// embedded dialect it creates the tables; for the networked dialect it only
// verifies they already exist.
func (b *backend) EnsureSchema(ctx context.Context) error {
	switch b.dialect {
	case DialectSQLite:
		return b.ensureSchemaSQLite(ctx)
	case DialectPostgres:
		return b.ensureSchemaPostgres(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedDatabaseType, b.dialect)
	}
}

// Open resolves a Backend from cfg. When cfg.Type is networked, it attempts
// the Postgres backend first and falls back to the embedded SQLite backend
// on connection failure, logging a warning (spec.md §9, Open Question 4).
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Backend, error) {
	var (
		be  Backend
		err error
	)

	switch cfg.Type {
	case TypeNetworked:
		be, err = openPostgres(ctx, cfg, logger)
		if err != nil {
			logger.Warn("networked backend unreachable, falling back to embedded store",
				slog.String("error", err.Error()))

			be, err = openSQLite(ctx, cfg, logger)
		}
	case TypeEmbedded:
		be, err = openSQLite(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDatabaseType, cfg.Type)
	}

	if err != nil {
		return nil, err
	}

	if err := be.EnsureSchema(ctx); err != nil {
		_ = be.Close()
		return nil, err
	}

	return be, nil
}
