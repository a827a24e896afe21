// Package roster is the client boundary to the authoritative genealogy
// roster (spec.md §4.11). The roster itself is out of scope; this package
// only defines and implements the read iterator and write-back submission
// the orchestrator and review workflow consume.
//
// The original source reaches the roster two incompatible ways: a GraphQL
// query API (src/genealogy_extractors/api_client.py) and a subprocess
// curl caller. spec.md's Open Question 2 treats the roster as opaque and
// accepts any compatible JSON-over-HTTP client; this package implements a
// plain REST-style client over stdlib net/http, grounded on the teacher's
// outbound-HTTP style (no pack example reaches for a third-party HTTP
// client library for a single external JSON API - Outblock-flowindex's
// internal/market fetchers use a bare http.Client the same way).
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/kindred-labs/genealogy-enrich/internal/ratelimit"
)

// sourceKey identifies roster HTTP calls to the shared rate limiter, kept
// distinct from genealogy source keys (findagrave, geneanet, ...).
const sourceKey = "roster"

// ErrRosterNotConfigured is returned when Endpoint or Key is empty.
var ErrRosterNotConfigured = errors.New("roster client not configured")

// Person is one roster entry, carrying only the fields the orchestrator's
// per-person control loop needs to build a search query (spec.md §4.12
// step 2-3).
type Person struct {
	ID                 string `json:"id"`
	Surname            string `json:"surname"`
	GivenName          string `json:"given_name"`
	BirthYear          *int   `json:"birth_year"`
	EstimatedBirthYear *int   `json:"estimated_birth_year"`
	Location           string `json:"location"`
	Country            string `json:"country"`
	Region             string `json:"region"`
}

// SubmitRequest is the payload for the approved-submission write-back
// (spec.md §4.11). Findings, NewFather, NewMother, and Notes are optional.
type SubmitRequest struct {
	PersonID         string          `json:"person_id"`
	SourceDescriptor string          `json:"source_descriptor"`
	Confidence       int             `json:"confidence"`
	Findings         json.RawMessage `json:"findings,omitempty"`
	NewFather        string          `json:"new_father,omitempty"`
	NewMother        string          `json:"new_mother,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	AgentID          string          `json:"agent_id"`
}

// SubmitResult is the roster's response to a submission.
type SubmitResult struct {
	Success      bool   `json:"success"`
	ChangesMade  bool   `json:"changes_made"`
	GapsResolved int    `json:"gaps_resolved"`
	SourceID     string `json:"source_id"`
}

// Client is the roster boundary. The orchestrator only ever calls People;
// Submit is reserved for the approved-submission action (spec.md §4.11).
type Client interface {
	People(ctx context.Context) (*PersonIterator, error)
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
}

// peoplePage is one paginated response page.
type peoplePage struct {
	People     []Person `json:"people"`
	NextCursor string   `json:"next_cursor"`
	HasMore    bool     `json:"has_more"`
}

// HTTPClient is the JSON-over-HTTP roster client. It is safe for concurrent
// use; the orchestrator's roster iterator is documented single-consumer,
// but Submit may be called independently by the review workflow.
type HTTPClient struct {
	endpoint   string
	key        string
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

// New returns an HTTPClient for endpoint authenticated with key. limiter
// provides the retry-with-backoff policy shared with the genealogy
// sources' fetchers; a nil limiter disables retries.
func New(endpoint, key string, limiter *ratelimit.Limiter) *HTTPClient {
	return &HTTPClient{
		endpoint:   endpoint,
		key:        key,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    limiter,
	}
}

// Configured reports whether endpoint and key are both set (spec.md §4.1:
// "empty means the write-back feature is unavailable").
func (c *HTTPClient) Configured() bool {
	return c.endpoint != "" && c.key != ""
}

// People returns an iterator over every roster person, in the roster's
// deterministic cursor order. The first page is fetched eagerly so a
// misconfigured or unreachable roster fails at call time, not on first Next.
func (c *HTTPClient) People(ctx context.Context) (*PersonIterator, error) {
	if !c.Configured() {
		return nil, ErrRosterNotConfigured
	}

	it := &PersonIterator{client: c}

	if err := it.fetchPage(ctx, ""); err != nil {
		return nil, err
	}

	return it, nil
}

// Submit pushes an approved finding's write-back to the roster.
func (c *HTTPClient) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	if !c.Configured() {
		return SubmitResult{}, ErrRosterNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode submit request: %w", err)
	}

	var result SubmitResult

	err = c.doWithRetry(ctx, func() error {
		var callErr error
		result, callErr = c.postSubmission(ctx, body)

		return callErr
	})
	if err != nil {
		return SubmitResult{}, err
	}

	return result, nil
}

func (c *HTTPClient) postSubmission(ctx context.Context, body []byte) (SubmitResult, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/submissions", bytes.NewReader(body))
	if err != nil {
		return SubmitResult{}, fmt.Errorf("build submit request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-API-Key", c.key)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("submit finding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return SubmitResult{}, fmt.Errorf("submit finding: roster returned %s", resp.Status)
	}

	var result SubmitResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return SubmitResult{}, fmt.Errorf("decode submit response: %w", err)
	}

	return result, nil
}

func (c *HTTPClient) fetchPeoplePage(ctx context.Context, cursor string) (peoplePage, error) {
	url := c.endpoint + "/people"
	if cursor != "" {
		url += "?cursor=" + cursor
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return peoplePage{}, fmt.Errorf("build people request: %w", err)
	}

	httpReq.Header.Set("X-API-Key", c.key)

	var page peoplePage

	err = c.doWithRetry(ctx, func() error {
		resp, callErr := c.httpClient.Do(httpReq)
		if callErr != nil {
			return fmt.Errorf("fetch people page: %w", callErr)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("fetch people page: roster returned %s", resp.Status)
		}

		if callErr = json.NewDecoder(resp.Body).Decode(&page); callErr != nil {
			return fmt.Errorf("decode people page: %w", callErr)
		}

		return nil
	})
	if err != nil {
		return peoplePage{}, err
	}

	return page, nil
}

// doWithRetry runs fn under the shared rate limiter's backoff policy when
// one is configured, otherwise runs fn directly.
func (c *HTTPClient) doWithRetry(ctx context.Context, fn func() error) error {
	if c.limiter == nil {
		return fn()
	}

	return c.limiter.RetryWithBackoff(ctx, sourceKey, fn)
}

// PersonIterator walks the roster's paginated person list one page at a
// time, advancing by the server's opaque cursor. Not safe for concurrent
// use by multiple goroutines, matching spec.md §5's "single-consumer"
// roster iterator.
type PersonIterator struct {
	client  *HTTPClient
	buf     []Person
	idx     int
	cursor  string
	hasMore bool
}

func (it *PersonIterator) fetchPage(ctx context.Context, cursor string) error {
	page, err := it.client.fetchPeoplePage(ctx, cursor)
	if err != nil {
		return err
	}

	it.buf = page.People
	it.idx = 0
	it.cursor = page.NextCursor
	it.hasMore = page.HasMore

	return nil
}

// Next returns the next person, or false once the roster is exhausted.
func (it *PersonIterator) Next(ctx context.Context) (Person, bool, error) {
	for it.idx >= len(it.buf) {
		if !it.hasMore {
			return Person{}, false, nil
		}

		if err := it.fetchPage(ctx, it.cursor); err != nil {
			return Person{}, false, err
		}

		if len(it.buf) == 0 && !it.hasMore {
			return Person{}, false, nil
		}
	}

	p := it.buf[it.idx]
	it.idx++

	return p, true, nil
}
