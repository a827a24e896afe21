// Package orchestrator is the per-person, per-source control loop that
// ties every other package together (spec.md §4.12): it pulls people from
// the roster, builds a search query, fans out one worker per candidate
// source, hands each fetched page to the matching extractor, and stages
// the candidates that clear the score threshold. Grounded on
// original_source/research.py's search_source/search_all_sources_parallel/
// run_research functions, reimplemented over a bounded goroutine pool in
// place of ThreadPoolExecutor.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/kindred-labs/genealogy-enrich/internal/browser"
	"github.com/kindred-labs/genealogy-enrich/internal/dedup"
	"github.com/kindred-labs/genealogy-enrich/internal/errorlog"
	"github.com/kindred-labs/genealogy-enrich/internal/extract"
	"github.com/kindred-labs/genealogy-enrich/internal/location"
	"github.com/kindred-labs/genealogy-enrich/internal/ratelimit"
	"github.com/kindred-labs/genealogy-enrich/internal/roster"
	"github.com/kindred-labs/genealogy-enrich/internal/sources"
	"github.com/kindred-labs/genealogy-enrich/internal/staging"
)

const (
	// DefaultMinScore is the staging threshold applied when Options.MinScore is zero.
	DefaultMinScore = 80
	// DefaultMaxWorkers is the per-person source fan-out width.
	DefaultMaxWorkers = 16
	// defaultBirthYear is substituted when a person carries no birth year at all.
	defaultBirthYear = 1850
	// minPlausibleBirthYear below this a person is skipped as "too ancient".
	minPlausibleBirthYear = 1200
	// freeBMDOverflowPhrase is FreeBMD's own wording for its 3000-record display cap.
	freeBMDOverflowPhrase = "maximum number that can be displayed is 3000"
	freeBMDSourceKey      = "freebmd"
)

// Options tunes one Run invocation (spec.md §4.12 inputs, §6 CLI flags).
type Options struct {
	// Limit caps the number of people pulled from the roster. Zero or
	// negative means unlimited (the CLI's --all flag).
	Limit int
	// SourceFilter restricts the run to one source key. Empty means every
	// active, non-disabled source.
	SourceFilter string
	// MinScore is the staging threshold; zero defaults to DefaultMinScore.
	MinScore int
	// Sequential disables the per-person worker pool.
	Sequential bool
	// MaxWorkers bounds per-person source fan-out; zero defaults to DefaultMaxWorkers.
	MaxWorkers int
	// Verbose enables per-source progress logging at Info level.
	Verbose bool
}

func (o Options) withDefaults() Options {
	if o.MinScore <= 0 {
		o.MinScore = DefaultMinScore
	}

	if o.MaxWorkers <= 0 {
		o.MaxWorkers = DefaultMaxWorkers
	}

	return o
}

// PersonOutcome reports one person's pass through the control loop.
type PersonOutcome struct {
	PersonID   string
	Skipped    bool
	SkipReason string
	Sources    []SourceOutcome
}

// SourceOutcome reports one (person, source) worker's result.
type SourceOutcome struct {
	SourceKey  string
	Staged     int
	HadError   bool
	Error      string
	BotCheck   bool
	DailyLimit bool
}

// Summary aggregates a full Run.
type Summary struct {
	PeopleProcessed int
	PeopleSkipped   int
	FindingsStaged  int
	SourceErrors    int
	BotChecks       []string
	DailyLimits     []string
}

// Fetcher is the subset of browser.Pool the orchestrator drives. Declared
// here rather than depended on concretely so tests can substitute a fake
// browser without a live Chrome instance.
type Fetcher interface {
	Fetch(ctx context.Context, url, sourceKey, waitForSelector string) (string, error)
	FetchForm(ctx context.Context, sourceKey, waitForSelector string, actions ...chromedp.Action) (string, error)
}

// Orchestrator wires the roster, source registry, gazetteer, browser pool,
// extractors, rate limiter, and durable stores into the control loop.
type Orchestrator struct {
	Roster     roster.Client
	Sources    *sources.Registry
	Extractors *extract.Registry
	Location   *location.Resolver
	Browser    Fetcher
	Limiter    *ratelimit.Limiter
	Dedup      *dedup.Store
	Staging    *staging.Store
	Errors     *errorlog.Log
	HTTPClient *http.Client
	Logger     *slog.Logger

	mu             sync.Mutex
	dailyLimitSkip map[string]bool
}

// New constructs an Orchestrator from its already-built collaborators.
// HTTPClient, used for json-api sources, starts as a client with a 30s
// timeout and may be replaced after construction.
func New(
	rosterClient roster.Client,
	sourceRegistry *sources.Registry,
	extractRegistry *extract.Registry,
	locationResolver *location.Resolver,
	browserPool Fetcher,
	limiter *ratelimit.Limiter,
	dedupStore *dedup.Store,
	stagingStore *staging.Store,
	errorLog *errorlog.Log,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		Roster:         rosterClient,
		Sources:        sourceRegistry,
		Extractors:     extractRegistry,
		Location:       locationResolver,
		Browser:        browserPool,
		Limiter:        limiter,
		Dedup:          dedupStore,
		Staging:        stagingStore,
		Errors:         errorLog,
		HTTPClient:     &http.Client{Timeout: 30 * time.Second},
		Logger:         logger,
		dailyLimitSkip: make(map[string]bool),
	}
}

// candidateSourceKeys returns the active sources this run searches,
// honoring Options.SourceFilter.
func (o *Orchestrator) candidateSourceKeys(opts Options) []string {
	if opts.SourceFilter != "" {
		return []string{opts.SourceFilter}
	}

	return o.Sources.Active()
}

// Run drives the full per-person control loop against the roster iterator
// until it is exhausted, Options.Limit is reached, or ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (Summary, error) {
	opts = opts.withDefaults()

	var summary Summary

	allSources := o.candidateSourceKeys(opts)

	it, err := o.Roster.People(ctx)
	if err != nil {
		return summary, fmt.Errorf("open roster iterator: %w", err)
	}

	for opts.Limit <= 0 || summary.PeopleProcessed < opts.Limit {
		if err := ctx.Err(); err != nil {
			return summary, nil
		}

		person, ok, err := it.Next(ctx)
		if err != nil {
			return summary, fmt.Errorf("advance roster iterator: %w", err)
		}

		if !ok {
			break
		}

		summary.PeopleProcessed++

		outcome := o.processPerson(ctx, person, allSources, opts)
		o.foldOutcome(&summary, outcome)
	}

	return summary, nil
}

func (o *Orchestrator) foldOutcome(summary *Summary, outcome PersonOutcome) {
	if outcome.Skipped {
		summary.PeopleSkipped++

		return
	}

	for _, s := range outcome.Sources {
		summary.FindingsStaged += s.Staged

		if s.HadError {
			summary.SourceErrors++
		}

		if s.BotCheck {
			summary.BotChecks = append(summary.BotChecks, s.SourceKey)
		}

		if s.DailyLimit {
			summary.DailyLimits = append(summary.DailyLimits, s.SourceKey)
		}
	}
}

// processPerson runs steps 2-5 of the per-person control loop for one
// roster entry.
func (o *Orchestrator) processPerson(ctx context.Context, person roster.Person, allSources []string, opts Options) PersonOutcome {
	outcome := PersonOutcome{PersonID: person.ID}

	query, ok := buildQuery(person)
	if !ok {
		outcome.Skipped = true
		outcome.SkipReason = "no surname"

		return outcome
	}

	candidates := o.unprocessedCandidates(person.ID, allSources)
	if len(candidates) == 0 {
		outcome.Skipped = true
		outcome.SkipReason = "no unsearched sources"

		return outcome
	}

	if opts.Verbose {
		o.Logger.Info("searching person", "person_id", person.ID, "sources", candidates)
	}

	if opts.Sequential || len(candidates) == 1 {
		for _, key := range candidates {
			outcome.Sources = append(outcome.Sources, o.runSource(ctx, person, query, key, opts))
		}

		return outcome
	}

	outcome.Sources = o.runSourcesParallel(ctx, person, query, candidates, opts)

	return outcome
}

// unprocessedCandidates computes unprocessed_sources(person, active) minus
// this session's daily-limit skip set (spec.md §4.12 step 4).
func (o *Orchestrator) unprocessedCandidates(personID string, allSources []string) []string {
	unprocessed := o.Dedup.UnprocessedSources(personID, allSources)

	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.dailyLimitSkip) == 0 {
		return unprocessed
	}

	out := make([]string, 0, len(unprocessed))

	for _, key := range unprocessed {
		if !o.dailyLimitSkip[key] {
			out = append(out, key)
		}
	}

	return out
}

// runSourcesParallel fans out one worker per source to a pool bounded by
// Options.MaxWorkers, collecting results as they complete. Per-source
// failures never cancel sibling workers (spec.md's failure isolation).
func (o *Orchestrator) runSourcesParallel(ctx context.Context, person roster.Person, query extract.Query, candidates []string, opts Options) []SourceOutcome {
	results := make([]SourceOutcome, len(candidates))

	sem := make(chan struct{}, opts.MaxWorkers)

	var wg sync.WaitGroup

	for i, key := range candidates {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			results[i] = SourceOutcome{SourceKey: key, HadError: true, Error: ctx.Err().Error()}

			continue
		}

		wg.Add(1)

		go func(i int, key string) {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = o.runSource(ctx, person, query, key, opts)
		}(i, key)
	}

	wg.Wait()

	return results
}

// runSource implements the per-worker algorithm (spec.md §4.12 "Per
// worker"): fetch, extract, stage matches above threshold, then mark
// processed according to the exception taxonomy.
func (o *Orchestrator) runSource(ctx context.Context, person roster.Person, query extract.Query, sourceKey string, opts Options) SourceOutcome {
	outcome := SourceOutcome{SourceKey: sourceKey}

	src, err := o.Sources.Get(sourceKey)
	if err != nil {
		outcome.HadError = true
		outcome.Error = err.Error()

		return outcome
	}

	var (
		content []byte
		fetchURL string
	)

	retryErr := o.Limiter.RetryWithBackoff(ctx, sourceKey, func() error {
		c, u, ferr := o.dispatchFetch(ctx, src, person, query)
		if ferr != nil {
			return ferr
		}

		content, fetchURL = c, u

		return nil
	})

	var (
		botCheck   *browser.BotCheckDetected
		dailyLimit *browser.DailyLimitReached
	)

	switch {
	case errors.As(retryErr, &botCheck):
		outcome.BotCheck = true
		o.logError(ctx, sourceKey, errorlog.TypeBotCheck, retryErr.Error(), query)

		return outcome
	case errors.As(retryErr, &dailyLimit):
		outcome.DailyLimit = true
		o.addDailyLimitSkip(sourceKey)
		o.logError(ctx, sourceKey, errorlog.TypeDailyLimit, retryErr.Error(), query)

		return outcome
	case retryErr != nil:
		outcome.HadError = true
		outcome.Error = retryErr.Error()
		o.logError(ctx, sourceKey, errorlog.Classify(retryErr), retryErr.Error(), query)

		if err := o.Dedup.MarkProcessed(ctx, person.ID, sourceKey, 0, true, retryErr.Error()); err != nil {
			o.Logger.Warn("mark processed after fetch error failed", "source", sourceKey, "person_id", person.ID, "error", err)
		}

		return outcome
	}

	extractor, err := o.Extractors.Get(sourceKey)
	if err != nil {
		outcome.HadError = true
		outcome.Error = err.Error()

		return outcome
	}

	candidates := extract.ExtractWithFallback(extractor, sourceKey, content, query, fetchURL)

	staged, stageErr := o.stageCandidates(ctx, person, sourceKey, fetchURL, query, candidates, opts.MinScore)
	if stageErr != nil {
		outcome.HadError = true
		outcome.Error = stageErr.Error()
	}

	outcome.Staged = staged

	if err := o.Dedup.MarkProcessed(ctx, person.ID, sourceKey, len(candidates), outcome.HadError, outcome.Error); err != nil {
		o.Logger.Warn("mark processed failed", "source", sourceKey, "person_id", person.ID, "error", err)
	}

	return outcome
}

func (o *Orchestrator) stageCandidates(ctx context.Context, person roster.Person, sourceKey, sourceURL string, query extract.Query, candidates []extract.Candidate, minScore int) (int, error) {
	searchParams, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("encode search params: %w", err)
	}

	staged := 0

	for _, c := range candidates {
		if c.Score < minScore {
			continue
		}

		record, err := json.Marshal(c)
		if err != nil {
			return staged, fmt.Errorf("encode candidate record: %w", err)
		}

		personName := strings.TrimSpace(person.GivenName + " " + person.Surname)

		if _, err := o.Staging.AddFinding(ctx, person.ID, personName, sourceKey, sourceURL, record, float64(c.Score), searchParams); err != nil {
			return staged, fmt.Errorf("stage finding: %w", err)
		}

		staged++
	}

	return staged, nil
}

func (o *Orchestrator) addDailyLimitSkip(sourceKey string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dailyLimitSkip[sourceKey] = true
}

func (o *Orchestrator) logError(ctx context.Context, sourceKey string, errType errorlog.ErrorType, message string, query extract.Query) {
	params, _ := json.Marshal(query)

	if err := o.Errors.Append(ctx, errorlog.Entry{
		SourceKey: sourceKey,
		ErrorType: errType,
		Message:   message,
		Query:     params,
	}); err != nil {
		o.Logger.Warn("append error log entry failed", "source", sourceKey, "error", err)
	}
}

// buildQuery implements steps 2-3 of the per-person control loop: surname
// gating and birth-year resolution with the ancient-record skip.
func buildQuery(person roster.Person) (extract.Query, bool) {
	if strings.TrimSpace(person.Surname) == "" {
		return extract.Query{}, false
	}

	birthYear := defaultBirthYear

	switch {
	case person.BirthYear != nil:
		birthYear = *person.BirthYear
	case person.EstimatedBirthYear != nil:
		birthYear = *person.EstimatedBirthYear
	}

	if birthYear < minPlausibleBirthYear {
		return extract.Query{}, false
	}

	return extract.Query{
		Surname:      person.Surname,
		GivenName:    person.GivenName,
		Location:     person.Location,
		BirthYear:    birthYear,
		BirthYearEnd: birthYear + 10,
	}, true
}

// dispatchFetch selects the fetch strategy by the source's access model
// (spec.md §4.12 "Per worker" step 1) and returns the raw page content
// alongside the URL actually fetched (fallbackCandidate needs it).
func (o *Orchestrator) dispatchFetch(ctx context.Context, src sources.Source, person roster.Person, query extract.Query) ([]byte, string, error) {
	switch src.AccessModel {
	case sources.AccessURLTemplate:
		u := fillURLTemplate(src.URLTemplate, templateFields(query, nil))

		content, err := o.Browser.Fetch(ctx, u, src.Key, src.WaitForSelector)
		if err != nil {
			return nil, u, err
		}

		return []byte(content), u, nil

	case sources.AccessURLTemplateLocation:
		return o.fetchURLTemplateLocation(ctx, src, person, query)

	case sources.AccessJSONAPI:
		u := fillURLTemplate(src.URLTemplate, templateFields(query, nil))

		content, err := o.fetchJSON(ctx, u)
		if err != nil {
			return nil, u, err
		}

		return content, u, nil

	case sources.AccessFormSubmit:
		return o.fetchFormSubmit(ctx, src, query)

	case sources.AccessLocationResolver:
		return o.fetchLocationResolver(ctx, src, person, query)

	default:
		return nil, "", fmt.Errorf("%s: unsupported access model %q", src.Key, src.AccessModel)
	}
}

func (o *Orchestrator) fetchURLTemplateLocation(ctx context.Context, src sources.Source, person roster.Person, query extract.Query) ([]byte, string, error) {
	tmpl := src.URLTemplate
	extra := map[string]string(nil)

	if loc, ok := o.resolveLocation(person); ok {
		tmpl = src.URLTemplateWithLocation
		extra = map[string]string{"location": loc.Name}
	}

	u := fillURLTemplate(tmpl, templateFields(query, extra))

	content, err := o.Browser.Fetch(ctx, u, src.Key, src.WaitForSelector)
	if err != nil {
		return nil, u, err
	}

	return []byte(content), u, nil
}

func (o *Orchestrator) fetchLocationResolver(ctx context.Context, src sources.Source, person roster.Person, query extract.Query) ([]byte, string, error) {
	loc, ok := o.resolveLocation(person)

	extra := map[string]string{
		"gazetteer_gid":           "0",
		"gazetteer_region_id":     "0",
		"gazetteer_department_id": "0",
		"radius_flag":             "0",
	}

	if ok {
		extra["gazetteer_gid"] = strconv.Itoa(loc.GID)
		extra["gazetteer_region_id"] = strconv.Itoa(loc.RegionID)
		extra["gazetteer_department_id"] = strconv.Itoa(loc.DepartmentID)
		extra["radius_flag"] = strconv.Itoa(loc.RadiusFlag())
	}

	u := fillURLTemplate(src.URLTemplate, templateFields(query, extra))

	content, err := o.Browser.Fetch(ctx, u, src.Key, src.WaitForSelector)
	if err != nil {
		return nil, u, err
	}

	return []byte(content), u, nil
}

// resolveLocation tries the person's city, then region, then country
// against the gazetteer, in that order of specificity.
func (o *Orchestrator) resolveLocation(person roster.Person) (location.Location, bool) {
	if person.Location != "" {
		if loc, ok := o.Location.Find(person.Location, ""); ok {
			return loc, true
		}
	}

	if person.Region != "" {
		if loc, ok := o.Location.FindRegion(person.Region); ok {
			return loc, true
		}
	}

	if person.Country != "" {
		if loc, ok := o.Location.Find(person.Country, ""); ok {
			return loc, true
		}
	}

	return location.Location{}, false
}

// fetchJSON performs a direct HTTP GET for json-api sources and returns
// the raw response body.
func (o *Orchestrator) fetchJSON(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build json-api request: %w", err)
	}

	resp, err := o.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch json-api response: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &ratelimit.RateLimitedError{
			StatusCode: resp.StatusCode,
			RetryAfter: resp.Header.Get("Retry-After"),
			Err:        fmt.Errorf("json-api returned %s", resp.Status),
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("json-api returned %s", resp.Status)
	}

	body := make([]byte, 0, 4096)

	buf := make([]byte, 4096)

	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}

		if readErr != nil {
			break
		}
	}

	return body, nil
}

// fetchFormSubmit drives a form-submit source through the browser pool's
// FetchForm entry point. FreeBMD alone carries the 3000-record display
// ceiling: on overflow, it is retried once with the year range narrowed to
// a single year (original_source/extract.py's
// fetch_freebmd_with_playwright).
func (o *Orchestrator) fetchFormSubmit(ctx context.Context, src sources.Source, query extract.Query) ([]byte, string, error) {
	u := fillURLTemplate(src.URLTemplate, templateFields(query, nil))

	content, err := o.Browser.FetchForm(ctx, src.Key, src.WaitForSelector, chromedp.Navigate(u))
	if err != nil {
		return nil, u, err
	}

	if src.Key == freeBMDSourceKey && strings.Contains(content, freeBMDOverflowPhrase) {
		narrowed := query
		narrowed.BirthYearEnd = narrowed.BirthYear

		narrowURL := fillURLTemplate(src.URLTemplate, templateFields(narrowed, nil))

		retried, err := o.Browser.FetchForm(ctx, src.Key, src.WaitForSelector, chromedp.Navigate(narrowURL))
		if err != nil {
			return nil, narrowURL, err
		}

		return []byte(retried), narrowURL, nil
	}

	return []byte(content), u, nil
}

// templateFields maps a Query to the placeholder names used across
// sources.yaml's url_template strings, merging in any access-model-specific
// extras (location, gazetteer ids, radius flag).
func templateFields(query extract.Query, extra map[string]string) map[string]string {
	fields := map[string]string{
		"surname":        query.Surname,
		"given_name":     query.GivenName,
		"birth_year":     strconv.Itoa(query.BirthYear),
		"birth_year_end": strconv.Itoa(query.BirthYearEnd),
		"location":       query.Location,
	}

	for k, v := range extra {
		fields[k] = v
	}

	return fields
}

// fillURLTemplate substitutes {field} placeholders in tmpl, URL-encoding
// every value so a surname or location containing reserved characters
// cannot corrupt the resulting query string.
func fillURLTemplate(tmpl string, fields map[string]string) string {
	pairs := make([]string, 0, len(fields)*2)

	for k, v := range fields {
		pairs = append(pairs, "{"+k+"}", url.QueryEscape(v))
	}

	return strings.NewReplacer(pairs...).Replace(tmpl)
}
