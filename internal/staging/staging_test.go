package staging_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/kindred-labs/genealogy-enrich/internal/config"
	"github.com/kindred-labs/genealogy-enrich/internal/staging"
	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

func openTestBackend(t *testing.T) storage.Backend {
	t.Helper()

	cfg := storage.FromAppConfig(appconfig.Database{
		Type:       storage.TypeEmbedded,
		SQLitePath: filepath.Join(t.TempDir(), "staging.db"),
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	be, err := storage.Open(context.Background(), cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = be.Close() })

	return be
}

func TestAddFindingAndGetPending(t *testing.T) {
	be := openTestBackend(t)
	store := staging.New(be)
	ctx := context.Background()

	id, err := store.AddFinding(ctx, "p1", "Jean Martin", "findagrave", "https://findagrave.test/1",
		json.RawMessage(`{"name":"Jean Martin"}`), 85, json.RawMessage(`{"surname":"Martin"}`))
	require.NoError(t, err)
	assert.Positive(t, id)

	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	f := pending[0]
	assert.Equal(t, "p1", f.PersonID)
	assert.Equal(t, "Jean Martin", f.PersonName)
	assert.Equal(t, "findagrave", f.SourceKey)
	assert.Equal(t, staging.StatusPending, f.Status)
	assert.Equal(t, float64(85), f.MatchScore)
	assert.Nil(t, f.ReviewedAt)
}

func TestApproveTransitionsState(t *testing.T) {
	be := openTestBackend(t)
	store := staging.New(be)
	ctx := context.Background()

	id, err := store.AddFinding(ctx, "p1", "Jean Martin", "findagrave", "", json.RawMessage(`{}`), 90, nil)
	require.NoError(t, err)

	require.NoError(t, store.Approve(ctx, id, "looks right"))

	approved, err := store.GetApproved(ctx)
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.Equal(t, staging.StatusApproved, approved[0].Status)
	assert.NotNil(t, approved[0].ReviewedAt)
	assert.Equal(t, "looks right", approved[0].Notes)

	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproveTwiceFailsOnTerminalState(t *testing.T) {
	be := openTestBackend(t)
	store := staging.New(be)
	ctx := context.Background()

	id, err := store.AddFinding(ctx, "p1", "Jean Martin", "findagrave", "", json.RawMessage(`{}`), 90, nil)
	require.NoError(t, err)
	require.NoError(t, store.Approve(ctx, id, ""))

	err = store.Reject(ctx, id, "changed my mind")
	require.Error(t, err)
	assert.True(t, errors.Is(err, staging.ErrFindingNotFound))
}

func TestGetByPersonReturnsAllStatuses(t *testing.T) {
	be := openTestBackend(t)
	store := staging.New(be)
	ctx := context.Background()

	id1, err := store.AddFinding(ctx, "p1", "Jean Martin", "findagrave", "", json.RawMessage(`{}`), 90, nil)
	require.NoError(t, err)
	_, err = store.AddFinding(ctx, "p1", "Jean Martin", "geneanet", "", json.RawMessage(`{}`), 70, nil)
	require.NoError(t, err)
	require.NoError(t, store.Reject(ctx, id1, ""))

	findings, err := store.GetByPerson(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, findings, 2)
}

func TestSummary(t *testing.T) {
	be := openTestBackend(t)
	store := staging.New(be)
	ctx := context.Background()

	id1, err := store.AddFinding(ctx, "p1", "Jean Martin", "findagrave", "", json.RawMessage(`{}`), 90, nil)
	require.NoError(t, err)
	_, err = store.AddFinding(ctx, "p2", "Marie Dupont", "findagrave", "", json.RawMessage(`{}`), 60, nil)
	require.NoError(t, err)
	require.NoError(t, store.Approve(ctx, id1, ""))

	summary, err := store.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Pending)
	assert.Equal(t, 1, summary.Approved)
	assert.Equal(t, 0, summary.Rejected)
	assert.Equal(t, 1, summary.Reviewed)
	assert.Equal(t, 2, summary.BySource["findagrave"])
}

func TestClearAll(t *testing.T) {
	be := openTestBackend(t)
	store := staging.New(be)
	ctx := context.Background()

	_, err := store.AddFinding(ctx, "p1", "Jean Martin", "findagrave", "", json.RawMessage(`{}`), 90, nil)
	require.NoError(t, err)

	require.NoError(t, store.ClearAll(ctx))

	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
