package orchestrator_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindred-labs/genealogy-enrich/internal/browser"
	appconfig "github.com/kindred-labs/genealogy-enrich/internal/config"
	"github.com/kindred-labs/genealogy-enrich/internal/dedup"
	"github.com/kindred-labs/genealogy-enrich/internal/errorlog"
	"github.com/kindred-labs/genealogy-enrich/internal/extract"
	"github.com/kindred-labs/genealogy-enrich/internal/location"
	"github.com/kindred-labs/genealogy-enrich/internal/orchestrator"
	"github.com/kindred-labs/genealogy-enrich/internal/ratelimit"
	"github.com/kindred-labs/genealogy-enrich/internal/roster"
	"github.com/kindred-labs/genealogy-enrich/internal/sources"
	"github.com/kindred-labs/genealogy-enrich/internal/staging"
	"github.com/kindred-labs/genealogy-enrich/internal/storage"
)

// roundTripperFunc adapts a plain function to http.RoundTripper, so a
// single http.Client can stand in for every json-api source regardless of
// the real host baked into its url_template.
type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

// fakeFetcher stands in for the browser pool. fn is keyed by source key and
// controls what each call returns; calls is the number of invocations
// observed across Fetch and FetchForm.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	fn    func(sourceKey string) (string, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, _, sourceKey, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	return f.fn(sourceKey)
}

func (f *fakeFetcher) FetchForm(ctx context.Context, sourceKey, waitForSelector string, _ ...chromedp.Action) (string, error) {
	return f.Fetch(ctx, "", sourceKey, waitForSelector)
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls
}

func openTestBackend(t *testing.T) storage.Backend {
	t.Helper()

	cfg := storage.FromAppConfig(appconfig.Database{
		Type:       storage.TypeEmbedded,
		SQLitePath: filepath.Join(t.TempDir(), "orchestrator.db"),
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	be, err := storage.Open(context.Background(), cfg, logger)
	require.NoError(t, err)

	t.Cleanup(func() { _ = be.Close() })

	return be
}

// rosterServer runs an httptest server exposing exactly the people the
// test hands it, in one page, and a no-op /submissions endpoint.
func rosterServer(t *testing.T, people []roster.Person) (*roster.HTTPClient, func()) {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/people":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"people":      people,
				"next_cursor": "",
				"has_more":    false,
			})
		default:
			http.Error(w, "unexpected path", http.StatusNotFound)
		}
	}))

	client := roster.New(server.URL, "test-key", nil)

	return client, server.Close
}

// matchIDFixture builds a MatchID JSON payload containing one person that
// scores well against surname/givenName/birthYear.
func matchIDFixture(surname, givenName string, birthYear int) string {
	payload, _ := json.Marshal(map[string]any{
		"response": map[string]any{
			"persons": []map[string]any{
				{
					"id":   "abc123",
					"name": map[string]any{"first": []string{givenName}, "last": surname},
					"birth": map[string]any{
						"date":     strconv.Itoa(birthYear) + "0101",
						"location": map[string]any{"city": "Paris"},
					},
					"death": map[string]any{
						"date":     "20010101",
						"location": map[string]any{"city": "Paris"},
					},
				},
			},
		},
	})

	return string(payload)
}

// newTestOrchestrator wires an Orchestrator over real storage, real source
// registry, and real extractors, with a fake browser fetcher and an
// intercepting HTTP transport in place of live network calls.
func newTestOrchestrator(t *testing.T, rosterClient roster.Client, fetcher *fakeFetcher, transport http.RoundTripper) (*orchestrator.Orchestrator, storage.Backend) {
	t.Helper()

	be := openTestBackend(t)

	sourceRegistry, err := sources.Load()
	require.NoError(t, err)

	locationResolver, err := location.Load()
	require.NoError(t, err)

	dedupStore, err := dedup.Open(context.Background(), be)
	require.NoError(t, err)

	stagingStore := staging.New(be)
	errorLog := errorlog.New(be)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	o := orchestrator.New(
		rosterClient,
		sourceRegistry,
		extract.NewRegistry(),
		locationResolver,
		fetcher,
		ratelimit.New(0, 3, 2.0),
		dedupStore,
		stagingStore,
		errorLog,
		logger,
	)

	if transport != nil {
		o.HTTPClient = &http.Client{Transport: transport}
	}

	return o, be
}

func TestRunStagesHighScoringJSONAPICandidate(t *testing.T) {
	birthYear := 1920
	people := []roster.Person{{ID: "p1", Surname: "Dupont", GivenName: "Marie", BirthYear: &birthYear}}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	transport := roundTripperFunc(func(_ *http.Request) (*http.Response, error) {
		body := matchIDFixture("Dupont", "Marie", birthYear)

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(body)),
			Header:     make(http.Header),
		}, nil
	})

	o, be := newTestOrchestrator(t, rosterClient, &fakeFetcher{fn: func(string) (string, error) { return "", nil }}, transport)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "matchid"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PeopleProcessed)
	assert.Equal(t, 0, summary.PeopleSkipped)
	assert.Equal(t, 1, summary.FindingsStaged)

	assert.True(t, newDedupView(t, be).IsProcessed("p1", "matchid"))

	pending, err := staging.New(be).GetPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "matchid", pending[0].SourceKey)
}

func TestRunSkipsPersonWithNoSurname(t *testing.T) {
	people := []roster.Person{{ID: "p1", GivenName: "Marie"}}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	o, _ := newTestOrchestrator(t, rosterClient, &fakeFetcher{fn: func(string) (string, error) { return "", nil }}, nil)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "matchid"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PeopleProcessed)
	assert.Equal(t, 1, summary.PeopleSkipped)
	assert.Equal(t, 0, summary.FindingsStaged)
}

func TestRunSkipsTooAncientBirthYear(t *testing.T) {
	birthYear := 1000
	people := []roster.Person{{ID: "p1", Surname: "Dupont", BirthYear: &birthYear}}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	o, _ := newTestOrchestrator(t, rosterClient, &fakeFetcher{fn: func(string) (string, error) { return "", nil }}, nil)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "matchid"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.PeopleSkipped)
}

func TestRunMarksProcessedWithErrorOnFetchFailure(t *testing.T) {
	people := []roster.Person{{ID: "p1", Surname: "Dupont", GivenName: "Marie"}}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	transport := roundTripperFunc(func(_ *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader("boom")),
			Header:     make(http.Header),
		}, nil
	})

	o, be := newTestOrchestrator(t, rosterClient, &fakeFetcher{fn: func(string) (string, error) { return "", nil }}, transport)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "matchid"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SourceErrors)

	stats, err := newDedupView(t, be).Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ErrorCount)

	entries, err := errorlog.New(be).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "matchid", entries[0].SourceKey)
}

func TestRunBotCheckDoesNotMarkProcessed(t *testing.T) {
	people := []roster.Person{{ID: "p1", Surname: "Dupont", GivenName: "Marie"}}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	fetcher := &fakeFetcher{fn: func(sourceKey string) (string, error) {
		return "", &browser.BotCheckDetected{Source: sourceKey}
	}}

	o, be := newTestOrchestrator(t, rosterClient, fetcher, nil)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "findagrave"})
	require.NoError(t, err)
	assert.Equal(t, []string{"findagrave"}, summary.BotChecks)

	assert.False(t, newDedupView(t, be).IsProcessed("p1", "findagrave"))

	entries, err := errorlog.New(be).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, errorlog.TypeBotCheck, entries[0].ErrorType)
}

func TestRunDailyLimitSkipsSourceForRestOfSession(t *testing.T) {
	birthYear := 1900
	people := []roster.Person{
		{ID: "p1", Surname: "Dupont", GivenName: "Marie", BirthYear: &birthYear},
		{ID: "p2", Surname: "Martin", GivenName: "Jean", BirthYear: &birthYear},
	}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	fetcher := &fakeFetcher{fn: func(sourceKey string) (string, error) {
		return "", &browser.DailyLimitReached{Source: sourceKey}
	}}

	o, be := newTestOrchestrator(t, rosterClient, fetcher, nil)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "findagrave"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.PeopleProcessed)
	assert.Equal(t, 1, summary.PeopleSkipped)
	assert.Equal(t, 1, fetcher.callCount())

	assert.False(t, newDedupView(t, be).IsProcessed("p1", "findagrave"))
	assert.False(t, newDedupView(t, be).IsProcessed("p2", "findagrave"))
}

func TestRunRespectsLimit(t *testing.T) {
	birthYear := 1900
	people := []roster.Person{
		{ID: "p1", Surname: "Dupont", BirthYear: &birthYear},
		{ID: "p2", Surname: "Martin", BirthYear: &birthYear},
		{ID: "p3", Surname: "Bernard", BirthYear: &birthYear},
	}

	rosterClient, closeServer := rosterServer(t, people)
	defer closeServer()

	o, _ := newTestOrchestrator(t, rosterClient, &fakeFetcher{fn: func(string) (string, error) { return "<html></html>", nil }}, nil)

	summary, err := o.Run(context.Background(), orchestrator.Options{SourceFilter: "findagrave", Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.PeopleProcessed)
}

func newDedupView(t *testing.T, be storage.Backend) *dedup.Store {
	t.Helper()

	store, err := dedup.Open(context.Background(), be)
	require.NoError(t, err)

	return store
}
