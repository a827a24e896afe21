package api

import (
	"context"
	"fmt"

	"github.com/kindred-labs/genealogy-enrich/internal/dedup"
	"github.com/kindred-labs/genealogy-enrich/internal/errorlog"
	"github.com/kindred-labs/genealogy-enrich/internal/ratelimit"
	"github.com/kindred-labs/genealogy-enrich/internal/staging"
)

// StagingSummaryProvider adapts a staging.Store to SummaryProvider.
type StagingSummaryProvider struct {
	Store *staging.Store
}

// Summary reports staged-finding counts by review status for GET /v1/summary.
func (p StagingSummaryProvider) Summary(ctx context.Context) (StagingSummary, error) {
	summary, err := p.Store.Summary(ctx)
	if err != nil {
		return StagingSummary{}, fmt.Errorf("load staging summary: %w", err)
	}

	return StagingSummary{
		Pending:  summary.Pending,
		Approved: summary.Approved,
		Rejected: summary.Rejected,
	}, nil
}

// ErrorLogProvider adapts an errorlog.Log to ErrorsProvider.
type ErrorLogProvider struct {
	Log *errorlog.Log
}

// Recent reports the most recent error-journal entries for GET /v1/errors.
func (p ErrorLogProvider) Recent(ctx context.Context, limit int) ([]ErrorEntry, error) {
	entries, err := p.Log.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("load recent error log entries: %w", err)
	}

	out := make([]ErrorEntry, len(entries))
	for i, e := range entries {
		out[i] = ErrorEntry{
			OccurredAt: e.OccurredAt,
			SourceKey:  e.SourceKey,
			ErrorType:  string(e.ErrorType),
			Message:    e.Message,
		}
	}

	return out, nil
}

// SourceStatsProvider adapts a dedup.Store and ratelimit.Limiter pair to
// StatsProvider, joining dedup's per-source processed counts with the
// limiter's per-source request counters for GET /v1/stats.
type SourceStatsProvider struct {
	Dedup   *dedup.Store
	Limiter *ratelimit.Limiter
}

// Stats reports per-source request and dedup counters.
func (p SourceStatsProvider) Stats(ctx context.Context) ([]SourceStats, error) {
	dedupStats, err := p.Dedup.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("load dedup stats: %w", err)
	}

	limiterStats := p.Limiter.AllStats()

	sources := make(map[string]struct{}, len(dedupStats.BySource)+len(limiterStats))
	for source := range dedupStats.BySource {
		sources[source] = struct{}{}
	}

	for source := range limiterStats {
		sources[source] = struct{}{}
	}

	out := make([]SourceStats, 0, len(sources))

	for source := range sources {
		ls := limiterStats[source]

		out = append(out, SourceStats{
			SourceKey:    source,
			RequestCount: ls.RequestCount,
			LastRequest:  ls.LastRequest,
			Processed:    dedupStats.BySource[source],
		})
	}

	return out, nil
}
