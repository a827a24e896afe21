// Package ratelimit enforces a per-source minimum request interval and
// retry-with-backoff policy, grounded on the teacher's token-bucket rate
// limiter (internal/api/middleware/ratelimit.go) but keyed on genealogy
// source rather than plugin ID, and paired with HTTP 429/Retry-After
// handling the teacher's middleware never needed.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultMinDelay is the minimum spacing between requests to one source.
	DefaultMinDelay = 1 * time.Second
	// DefaultMaxRetries is the number of retry-with-backoff attempts.
	DefaultMaxRetries = 5
	// DefaultBackoffFactor is the exponential backoff multiplier.
	DefaultBackoffFactor = 2.0
)

// ErrRetriesExhausted is returned when RetryWithBackoff runs out of attempts.
var ErrRetriesExhausted = errors.New("rate limit retries exhausted")

// RateLimitedError wraps an HTTP response that signaled a rate limit,
// carrying the raw Retry-After header so the caller's backoff loop can
// honor it instead of falling back to exponential backoff.
type RateLimitedError struct {
	StatusCode int
	RetryAfter string
	Err        error
}

func (e *RateLimitedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited (status %d): %s", e.StatusCode, e.Err.Error())
	}

	return fmt.Sprintf("rate limited (status %d)", e.StatusCode)
}

func (e *RateLimitedError) Unwrap() error { return e.Err }

// Stats reports request activity for one source.
type Stats struct {
	RequestCount int
	LastRequest  time.Time
}

type sourceState struct {
	limiter      *rate.Limiter
	requestCount int
	lastRequest  time.Time
}

// Limiter gates outbound requests per source, blocking in Wait until
// min_delay has elapsed since the last request to that source, and retrying
// rate-limited calls with backoff in RetryWithBackoff.
//
// Thread-safety: a single mutex guards the per-source map; any blocking wait
// or sleep happens outside the lock so sources don't serialize on each other.
type Limiter struct {
	mu            sync.Mutex
	sources       map[string]*sourceState
	minDelay      time.Duration
	maxRetries    int
	backoffFactor float64
}

// New constructs a Limiter with explicit parameters.
func New(minDelay time.Duration, maxRetries int, backoffFactor float64) *Limiter {
	return &Limiter{
		sources:       make(map[string]*sourceState),
		minDelay:      minDelay,
		maxRetries:    maxRetries,
		backoffFactor: backoffFactor,
	}
}

// NewDefault constructs a Limiter using the package defaults.
func NewDefault() *Limiter {
	return New(DefaultMinDelay, DefaultMaxRetries, DefaultBackoffFactor)
}

func (l *Limiter) stateFor(source string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.sources[source]
	if !ok {
		state = &sourceState{limiter: rate.NewLimiter(rate.Every(l.minDelay), 1)}
		l.sources[source] = state
	}

	return state.limiter
}

func (l *Limiter) recordRequest(source string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := l.sources[source]
	if state == nil {
		return
	}

	state.requestCount++
	state.lastRequest = time.Now()
}

// Wait blocks until at least min_delay has elapsed since the last request to
// source, then records the request.
func (l *Limiter) Wait(ctx context.Context, source string) error {
	if err := l.stateFor(source).Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter wait for %q: %w", source, err)
	}

	l.recordRequest(source)

	return nil
}

// Stats returns the request count and last-request time recorded for source.
func (l *Limiter) Stats(source string) Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.sources[source]
	if !ok {
		return Stats{}
	}

	return Stats{RequestCount: state.requestCount, LastRequest: state.lastRequest}
}

// AllStats returns a snapshot of Stats for every source seen so far.
func (l *Limiter) AllStats() map[string]Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make(map[string]Stats, len(l.sources))
	for source, state := range l.sources {
		out[source] = Stats{RequestCount: state.requestCount, LastRequest: state.lastRequest}
	}

	return out
}

// RetryWithBackoff waits for the source's turn, then calls fn. If fn returns
// a *RateLimitedError, the Retry-After header (seconds or HTTP-date) governs
// the sleep before retrying; if the header is absent or unparseable, or the
// error is otherwise classified as rate-limit-ish, it falls back to
// min_delay * backoff_factor^attempt. Any other error is returned immediately
// without retry.
func (l *Limiter) RetryWithBackoff(ctx context.Context, source string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < l.maxRetries; attempt++ {
		if err := l.Wait(ctx, source); err != nil {
			return err
		}

		err := fn()
		if err == nil {
			return nil
		}

		if !isRateLimitish(err) {
			return err
		}

		lastErr = err

		delay, ok := retryAfterDelay(err)
		if !ok {
			delay = time.Duration(float64(l.minDelay) * pow(l.backoffFactor, attempt))
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w for %q after %d attempts: %v", ErrRetriesExhausted, source, l.maxRetries, lastErr)
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}

	return result
}

func isRateLimitish(err error) bool {
	var rle *RateLimitedError
	if errors.As(err, &rle) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many") ||
		strings.Contains(msg, "rate limit")
}

// retryAfterDelay extracts a retry delay from a *RateLimitedError's
// Retry-After header, honoring both the seconds form and the HTTP-date form.
func retryAfterDelay(err error) (time.Duration, bool) {
	var rle *RateLimitedError
	if !errors.As(err, &rle) || rle.RetryAfter == "" {
		return 0, false
	}

	return ParseRetryAfter(rle.RetryAfter, time.Now())
}

// ParseRetryAfter parses an HTTP Retry-After header value, either a number
// of seconds or an HTTP-date, relative to now. Returns false if unparseable.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if secs, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
		if secs < 0 {
			return 0, false
		}

		return time.Duration(secs) * time.Second, true
	}

	if when, err := http.ParseTime(value); err == nil {
		delay := when.Sub(now)
		if delay < 0 {
			return 0, true
		}

		return delay, true
	}

	return 0, false
}
