// Package errorlog is the persisted, capped error journal (spec.md §4.10),
// grounded on the teacher's storage access patterns (internal/storage) and
// its RFC 7807 error taxonomy style for classification.
package errorlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

// ErrorType is the classification bucket an entry falls into.
type ErrorType string

// Classification buckets per spec.md §4.10.
const (
	TypeRateLimit  ErrorType = "RATE_LIMIT"
	TypeTimeout    ErrorType = "TIMEOUT"
	TypeNavigation ErrorType = "NAVIGATION"
	TypeNotFound   ErrorType = "NOT_FOUND"
	TypeBotCheck   ErrorType = "BOT_CHECK"
	TypeDailyLimit ErrorType = "DAILY_LIMIT"
	TypeParseError ErrorType = "PARSE_ERROR"
	TypeUnknown    ErrorType = "UNKNOWN"

	maxEntries        = 1000
	maxMessageLen     = 500
	maxStackTraceLen  = 1000
)

// Classify buckets err by inspecting its message for known substrings. This
// mirrors the orchestrator's on-exception classification rule; BOT_CHECK and
// DAILY_LIMIT are emitted explicitly by the orchestrator and browser pool
// rather than inferred here.
func Classify(err error) ErrorType {
	if err == nil {
		return TypeUnknown
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "429"), strings.Contains(msg, "rate limit"), strings.Contains(msg, "too many"):
		return TypeRateLimit
	case strings.Contains(msg, "timeout"):
		return TypeTimeout
	case strings.Contains(msg, "navigation"):
		return TypeNavigation
	case strings.Contains(msg, "404"):
		return TypeNotFound
	default:
		return TypeUnknown
	}
}

// Entry is one journal row.
type Entry struct {
	OccurredAt time.Time
	SourceKey  string
	ErrorType  ErrorType
	Message    string
	Query      json.RawMessage
	StackTrace string
}

// Summary aggregates entries by source and type.
type Summary struct {
	Total    int
	BySource map[string]int
	ByType   map[ErrorType]int
}

// Log is the append-only, FIFO-capped error journal.
type Log struct {
	backend storage.Backend
}

// New returns a Log backed by the given storage Backend.
func New(backend storage.Backend) *Log {
	return &Log{backend: backend}
}

// Append records an entry, truncating message and stack trace to their
// documented limits, then trims the journal to maxEntries (FIFO).
func (l *Log) Append(ctx context.Context, e Entry) error {
	if len(e.Message) > maxMessageLen {
		e.Message = e.Message[:maxMessageLen]
	}

	if len(e.StackTrace) > maxStackTraceLen {
		e.StackTrace = e.StackTrace[:maxStackTraceLen]
	}

	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}

	var query any
	if len(e.Query) > 0 {
		query = string(e.Query)
	}

	const insert = `INSERT INTO error_log (occurred_at, source_key, error_type, message, query, stack_trace)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := l.backend.ExecContext(ctx, insert,
		e.OccurredAt, e.SourceKey, string(e.ErrorType), e.Message, query, e.StackTrace,
	); err != nil {
		return fmt.Errorf("append error log entry: %w", err)
	}

	return l.trim(ctx)
}

// trim removes the oldest rows beyond maxEntries.
func (l *Log) trim(ctx context.Context) error {
	const countQuery = `SELECT COUNT(*) FROM error_log`

	var total int
	if err := l.backend.QueryRowContext(ctx, countQuery).Scan(&total); err != nil {
		return fmt.Errorf("count error log entries: %w", err)
	}

	if total <= maxEntries {
		return nil
	}

	excess := total - maxEntries

	const deleteOldest = `DELETE FROM error_log WHERE id IN (
		SELECT id FROM error_log ORDER BY id ASC LIMIT ?
	)`

	if _, err := l.backend.ExecContext(ctx, deleteOldest, excess); err != nil {
		return fmt.Errorf("trim error log: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, most recent first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	const query = `SELECT occurred_at, source_key, error_type, message, query, stack_trace
		FROM error_log ORDER BY id DESC LIMIT ?`

	rows, err := l.backend.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent error log entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var (
			e          Entry
			errorType  string
			queryField sql.NullString
		)

		if err := rows.Scan(&e.OccurredAt, &e.SourceKey, &errorType, &e.Message, &queryField, &e.StackTrace); err != nil {
			return nil, fmt.Errorf("scan error log entry: %w", err)
		}

		e.ErrorType = ErrorType(errorType)
		if queryField.Valid {
			e.Query = json.RawMessage(queryField.String)
		}

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Summarize returns by-source and by-type aggregates over the full journal.
func (l *Log) Summarize(ctx context.Context) (Summary, error) {
	summary := Summary{BySource: make(map[string]int), ByType: make(map[ErrorType]int)}

	const query = `SELECT source_key, error_type, COUNT(*) FROM error_log GROUP BY source_key, error_type`

	rows, err := l.backend.QueryContext(ctx, query)
	if err != nil {
		return summary, fmt.Errorf("summarize error log: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source, errType string
			count           int
		)

		if err := rows.Scan(&source, &errType, &count); err != nil {
			return summary, fmt.Errorf("scan error log summary row: %w", err)
		}

		summary.BySource[source] += count
		summary.ByType[ErrorType(errType)] += count
		summary.Total += count
	}

	return summary, rows.Err()
}

// Clear empties the journal (original_source/error_tracker.py's clear()).
func (l *Log) Clear(ctx context.Context) error {
	if _, err := l.backend.ExecContext(ctx, `DELETE FROM error_log`); err != nil {
		return fmt.Errorf("clear error log: %w", err)
	}

	return nil
}
