package errorlog_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/kindred-labs/genealogy-enrich/internal/config"
	"github.com/kindred-labs/genealogy-enrich/internal/errorlog"
	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

func openTestBackend(t *testing.T) storage.Backend {
	t.Helper()

	cfg := storage.FromAppConfig(appconfig.Database{
		Type:       storage.TypeEmbedded,
		SQLitePath: filepath.Join(t.TempDir(), "errorlog.db"),
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	be, err := storage.Open(context.Background(), cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = be.Close() })

	return be
}

func TestClassify(t *testing.T) {
	cases := map[string]errorlog.ErrorType{
		"HTTP 429 Too Many Requests": errorlog.TypeRateLimit,
		"rate limit exceeded":        errorlog.TypeRateLimit,
		"request timeout":            errorlog.TypeTimeout,
		"navigation failed":          errorlog.TypeNavigation,
		"404 not found":              errorlog.TypeNotFound,
		"something else broke":       errorlog.TypeUnknown,
	}

	for msg, want := range cases {
		assert.Equal(t, want, errorlog.Classify(errors.New(msg)), msg)
	}
}

func TestAppendAndRecent(t *testing.T) {
	be := openTestBackend(t)
	log := errorlog.New(be)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, errorlog.Entry{
		SourceKey: "findagrave",
		ErrorType: errorlog.TypeTimeout,
		Message:   "page load timed out",
	}))
	require.NoError(t, log.Append(ctx, errorlog.Entry{
		SourceKey: "geneanet",
		ErrorType: errorlog.TypeRateLimit,
		Message:   "429 too many requests",
	}))

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "geneanet", entries[0].SourceKey)
	assert.Equal(t, "findagrave", entries[1].SourceKey)
}

func TestSummarize(t *testing.T) {
	be := openTestBackend(t)
	log := errorlog.New(be)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, errorlog.Entry{SourceKey: "findagrave", ErrorType: errorlog.TypeTimeout, Message: "a"}))
	require.NoError(t, log.Append(ctx, errorlog.Entry{SourceKey: "findagrave", ErrorType: errorlog.TypeTimeout, Message: "b"}))
	require.NoError(t, log.Append(ctx, errorlog.Entry{SourceKey: "geneanet", ErrorType: errorlog.TypeRateLimit, Message: "c"}))

	summary, err := log.Summarize(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.BySource["findagrave"])
	assert.Equal(t, 1, summary.BySource["geneanet"])
	assert.Equal(t, 2, summary.ByType[errorlog.TypeTimeout])
	assert.Equal(t, 1, summary.ByType[errorlog.TypeRateLimit])
}

func TestClear(t *testing.T) {
	be := openTestBackend(t)
	log := errorlog.New(be)
	ctx := context.Background()

	require.NoError(t, log.Append(ctx, errorlog.Entry{SourceKey: "findagrave", ErrorType: errorlog.TypeTimeout, Message: "a"}))
	require.NoError(t, log.Clear(ctx))

	entries, err := log.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppendTruncatesMessageAndStackTrace(t *testing.T) {
	be := openTestBackend(t)
	log := errorlog.New(be)
	ctx := context.Background()

	longMessage := make([]byte, 600)
	for i := range longMessage {
		longMessage[i] = 'x'
	}

	require.NoError(t, log.Append(ctx, errorlog.Entry{
		SourceKey:  "wikitree",
		ErrorType:  errorlog.TypeUnknown,
		Message:    string(longMessage),
		StackTrace: string(longMessage) + string(longMessage),
	}))

	entries, err := log.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Len(t, entries[0].Message, 500)
	assert.Len(t, entries[0].StackTrace, 1000)
}
