// Package staging is the staged-findings store: research results pending
// review before they are ever submitted to the roster. Grounded on spec.md
// §4.9 and original_source/staged_findings.py, reworked onto the shared
// storage.Backend abstraction instead of a hardcoded psycopg2 connection.
package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

// Status is a staged finding's position in its review state machine.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ErrFindingNotFound is returned by Approve/Reject when the row doesn't exist.
var ErrFindingNotFound = errors.New("staged finding not found")

// Finding is one staged_findings row.
type Finding struct {
	ID              int64
	PersonID        string
	PersonName      string
	SourceKey       string
	SourceURL       string
	ExtractedRecord json.RawMessage
	MatchScore      float64
	SearchParams    json.RawMessage
	StagedAt        time.Time
	Status          Status
	ReviewedAt      *time.Time
	Notes           string
}

// Summary aggregates the full table for the stats surface (spec.md §4.9's
// summary(), printed by the --summary CLI flag).
type Summary struct {
	Total    int
	Pending  int
	Approved int
	Rejected int
	Reviewed int
	BySource map[string]int
}

// Store is the staged-findings store. Unlike dedup.Store it keeps no
// in-memory cache: review actions are infrequent and always need a
// consistent read of current status, so every call round-trips storage.
type Store struct {
	backend storage.Backend
}

// New returns a Store backed by the given storage Backend.
func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// AddFinding inserts a new pending finding and returns its id.
func (s *Store) AddFinding(
	ctx context.Context,
	personID, personName, sourceKey, sourceURL string,
	extractedRecord json.RawMessage,
	matchScore float64,
	searchParams json.RawMessage,
) (int64, error) {
	query := s.backend.Rebind(`
		INSERT INTO staged_findings
			(person_id, person_name, source_key, source_url, extracted_record, match_score, search_params, staged_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 'pending')
	`)

	result, err := s.backend.ExecContext(ctx, query,
		personID, personName, sourceKey, nullableString(sourceURL),
		string(extractedRecord), matchScore, nullableJSON(searchParams), time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("add finding for %q/%q: %w", personID, sourceKey, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return s.lastInsertIDFallback(ctx, personID, sourceKey)
	}

	return id, nil
}

// lastInsertIDFallback covers the Postgres driver, whose sql.Result doesn't
// support LastInsertId; it reads back the most recent row for this pair.
func (s *Store) lastInsertIDFallback(ctx context.Context, personID, sourceKey string) (int64, error) {
	query := s.backend.Rebind(`
		SELECT id FROM staged_findings
		WHERE person_id = ? AND source_key = ?
		ORDER BY id DESC LIMIT 1
	`)

	var id int64
	if err := s.backend.QueryRowContext(ctx, query, personID, sourceKey).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve finding id for %q/%q: %w", personID, sourceKey, err)
	}

	return id, nil
}

// GetPending returns all findings awaiting review, oldest first.
func (s *Store) GetPending(ctx context.Context) ([]Finding, error) {
	return s.queryFindings(ctx, s.backend.Rebind(
		`SELECT * FROM staged_findings WHERE status = 'pending' ORDER BY id`,
	))
}

// GetByPerson returns every finding staged for personID, regardless of status.
func (s *Store) GetByPerson(ctx context.Context, personID string) ([]Finding, error) {
	return s.queryFindings(ctx, s.backend.Rebind(
		`SELECT * FROM staged_findings WHERE person_id = ? ORDER BY id`,
	), personID)
}

// GetApproved returns every finding approved and ready for roster submission.
func (s *Store) GetApproved(ctx context.Context) ([]Finding, error) {
	return s.queryFindings(ctx, s.backend.Rebind(
		`SELECT * FROM staged_findings WHERE status = 'approved' ORDER BY id`,
	))
}

// Approve transitions a pending finding to approved. Terminal states are
// immutable: approving an already-reviewed row is a no-op error, matching
// the review UI being the only caller allowed to move state.
func (s *Store) Approve(ctx context.Context, id int64, notes string) error {
	return s.transition(ctx, id, StatusApproved, notes)
}

// Reject transitions a pending finding to rejected.
func (s *Store) Reject(ctx context.Context, id int64, notes string) error {
	return s.transition(ctx, id, StatusRejected, notes)
}

func (s *Store) transition(ctx context.Context, id int64, to Status, notes string) error {
	query := s.backend.Rebind(`
		UPDATE staged_findings
		SET status = ?, reviewed_at = ?, notes = ?
		WHERE id = ? AND status = 'pending'
	`)

	result, err := s.backend.ExecContext(ctx, query, string(to), time.Now(), nullableString(notes), id)
	if err != nil {
		return fmt.Errorf("transition finding %d to %s: %w", id, to, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check transition of finding %d: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("%w: %d", ErrFindingNotFound, id)
	}

	return nil
}

// Summary returns the aggregate counts used by the --summary CLI flag and the
// GET /v1/summary HTTP endpoint.
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	summary := Summary{BySource: make(map[string]int)}

	row := s.backend.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'approved' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'rejected' THEN 1 ELSE 0 END),
			SUM(CASE WHEN reviewed_at IS NOT NULL THEN 1 ELSE 0 END)
		FROM staged_findings
	`)

	var pending, approved, rejected, reviewed sql.NullInt64

	if err := row.Scan(&summary.Total, &pending, &approved, &rejected, &reviewed); err != nil {
		return summary, fmt.Errorf("summarize staged findings: %w", err)
	}

	summary.Pending = int(pending.Int64)
	summary.Approved = int(approved.Int64)
	summary.Rejected = int(rejected.Int64)
	summary.Reviewed = int(reviewed.Int64)

	bySource, err := s.countBySource(ctx)
	if err != nil {
		return summary, err
	}

	summary.BySource = bySource

	return summary, nil
}

func (s *Store) countBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.backend.QueryContext(ctx, `SELECT source_key, COUNT(*) FROM staged_findings GROUP BY source_key`)
	if err != nil {
		return nil, fmt.Errorf("count staged findings by source: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var (
			source string
			count  int
		)

		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan staged findings by source: %w", err)
		}

		counts[source] = count
	}

	return counts, rows.Err()
}

// ClearAll deletes every staged finding, without asking for confirmation.
// No CLI flag calls it; --clear-errors clears the error journal instead.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.backend.ExecContext(ctx, `DELETE FROM staged_findings`); err != nil {
		return fmt.Errorf("clear staged findings: %w", err)
	}

	return nil
}

func (s *Store) queryFindings(ctx context.Context, query string, args ...any) ([]Finding, error) {
	rows, err := s.backend.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query staged findings: %w", err)
	}
	defer rows.Close()

	var findings []Finding

	for rows.Next() {
		f, err := scanFinding(rows)
		if err != nil {
			return nil, err
		}

		findings = append(findings, f)
	}

	return findings, rows.Err()
}

func scanFinding(rows *sql.Rows) (Finding, error) {
	var (
		f               Finding
		status          string
		sourceURL       sql.NullString
		searchParams    sql.NullString
		reviewedAt      sql.NullTime
		notes           sql.NullString
		extractedRecord string
	)

	if err := rows.Scan(
		&f.ID, &f.PersonID, &f.PersonName, &f.SourceKey, &sourceURL,
		&extractedRecord, &f.MatchScore, &searchParams, &f.StagedAt,
		&status, &reviewedAt, &notes,
	); err != nil {
		return Finding{}, fmt.Errorf("scan staged finding: %w", err)
	}

	f.Status = Status(status)
	f.ExtractedRecord = json.RawMessage(extractedRecord)

	if sourceURL.Valid {
		f.SourceURL = sourceURL.String
	}

	if searchParams.Valid {
		f.SearchParams = json.RawMessage(searchParams.String)
	}

	if reviewedAt.Valid {
		t := reviewedAt.Time
		f.ReviewedAt = &t
	}

	if notes.Valid {
		f.Notes = notes.String
	}

	return f, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func nullableJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}

	return string(raw)
}
