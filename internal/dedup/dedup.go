// Package dedup is the durable search log: a record of (person, source)
// pairs already searched, backed by an in-memory cache for fast lookups.
// Grounded on spec.md §4.8 and the teacher's storage access style.
package dedup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

// key identifies one (person, source) pair in the cache.
type key struct {
	personID  string
	sourceKey string
}

// Stats summarizes the cache contents.
type Stats struct {
	TotalSearched int
	ErrorCount    int
	BySource      map[string]int
}

// Store is the dedup search log. It keeps an in-memory cache of every
// (person_id, source_key) pair already searched, refreshed on open and kept
// current by every MarkProcessed call, so IsProcessed never touches the
// database on the hot path.
//
// Thread-safety: a single mutex guards the cache; the underlying
// storage.Backend is safe for concurrent use independently.
type Store struct {
	backend storage.Backend

	mu    sync.RWMutex
	cache map[key]bool
}

// Open constructs a Store and populates its cache from search_log.
func Open(ctx context.Context, backend storage.Backend) (*Store, error) {
	s := &Store{backend: backend, cache: make(map[key]bool)}

	if err := s.RefreshCache(ctx); err != nil {
		return nil, err
	}

	return s, nil
}

// RefreshCache reloads the in-memory cache from search_log. The cache is
// eventually consistent across processes; this is sufficient because
// MarkProcessed upserts are idempotent and a rare re-search is tolerable.
func (s *Store) RefreshCache(ctx context.Context) error {
	rows, err := s.backend.QueryContext(ctx, `SELECT person_id, source_key FROM search_log`)
	if err != nil {
		return fmt.Errorf("refresh dedup cache: %w", err)
	}
	defer rows.Close()

	cache := make(map[key]bool)

	for rows.Next() {
		var k key
		if err := rows.Scan(&k.personID, &k.sourceKey); err != nil {
			return fmt.Errorf("scan dedup cache row: %w", err)
		}

		cache[k] = true
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate dedup cache rows: %w", err)
	}

	s.mu.Lock()
	s.cache = cache
	s.mu.Unlock()

	return nil
}

// IsProcessed reports whether (personID, sourceKey) has already been
// searched, reading only the in-memory cache.
func (s *Store) IsProcessed(personID, sourceKey string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.cache[key{personID, sourceKey}]
}

// UnprocessedSources returns the subset of allSources not yet searched for personID.
func (s *Store) UnprocessedSources(personID string, allSources []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []string

	for _, src := range allSources {
		if !s.cache[key{personID, src}] {
			out = append(out, src)
		}
	}

	return out
}

// MarkProcessed upserts a search_log row for (personID, sourceKey),
// refreshing searched_at on collision, and updates the in-memory cache.
// Rows are marked processed even when had_error is true; the orchestrator
// does not automatically retry errored searches on a later run.
func (s *Store) MarkProcessed(
	ctx context.Context,
	personID, sourceKey string,
	resultCount int,
	hadError bool,
	errorMessage string,
) error {
	query := s.backend.Rebind(`
		INSERT INTO search_log (person_id, source_key, searched_at, result_count, had_error, error_message)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (person_id, source_key) DO UPDATE SET
			searched_at = excluded.searched_at,
			result_count = excluded.result_count,
			had_error = excluded.had_error,
			error_message = excluded.error_message
	`)

	if _, err := s.backend.ExecContext(ctx, query,
		personID, sourceKey, time.Now(), resultCount, hadError, errorMessage,
	); err != nil {
		return fmt.Errorf("mark processed for %q/%q: %w", personID, sourceKey, err)
	}

	s.mu.Lock()
	s.cache[key{personID, sourceKey}] = true
	s.mu.Unlock()

	return nil
}

// Stats aggregates the current search log by reading directly from storage
// (not the cache, since error counts and per-source breakdowns aren't
// tracked in-memory).
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{BySource: make(map[string]int)}

	rows, err := s.backend.QueryContext(ctx, `SELECT source_key, had_error FROM search_log`)
	if err != nil {
		return stats, fmt.Errorf("load dedup stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			source   string
			hadError bool
		)

		if err := rows.Scan(&source, &hadError); err != nil {
			return stats, fmt.Errorf("scan dedup stats row: %w", err)
		}

		stats.TotalSearched++
		stats.BySource[source]++

		if hadError {
			stats.ErrorCount++
		}
	}

	return stats, rows.Err()
}

// Clear empties search_log and the in-memory cache.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.backend.ExecContext(ctx, `DELETE FROM search_log`); err != nil {
		return fmt.Errorf("clear search log: %w", err)
	}

	s.mu.Lock()
	s.cache = make(map[key]bool)
	s.mu.Unlock()

	return nil
}
