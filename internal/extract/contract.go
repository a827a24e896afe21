// Package extract holds the per-source record parsers that turn a fetched
// search-results page into scored candidate records (spec.md §4.5).
// Grounded on original_source/extraction/base_extractor.py's
// extract_with_fallback/calculate_match_score contract, generalized across
// the ~18 registered sources in internal/sources.
package extract

import (
	"fmt"

	"github.com/kindred-labs/genealogy-enrich/internal/scoring"
)

// Query is the search the extractor is trying to satisfy, threaded through
// to internal/scoring so every extractor scores candidates the same way.
type Query struct {
	Surname      string
	GivenName    string
	Location     string
	BirthYear    int
	BirthYearEnd int
}

func (q Query) scoringQuery() scoring.Query {
	return scoring.Query{
		Surname:   q.Surname,
		GivenName: q.GivenName,
		Location:  q.Location,
		BirthYear: q.BirthYear,
	}
}

// ParseError classifies a degraded, URL-only fallback candidate produced
// when extraction could not recover structured records from a page that
// plainly has some.
type ParseError string

const (
	// ParseFailed means the parser ran cleanly but found zero records on a
	// page whose content says results are present - the selectors no
	// longer match the live markup.
	ParseFailed ParseError = "PARSE_FAILED"
	// ParseErrored means the parser itself returned an error.
	ParseErrored ParseError = "PARSE_ERROR"
)

// Candidate is one extracted record, already scored against the Query that
// produced it.
type Candidate struct {
	Source     string
	Name       string
	BirthYear  int
	BirthPlace string
	DeathYear  int
	DeathPlace string
	URL        string
	Father     string
	Mother     string
	HasParents bool
	Score      int
	ParseError ParseError
}

// Extractor parses a fetched page's raw content (HTML or JSON, per the
// source's access model) into candidate records. HasResultsIndicator is
// source-specific: it reports whether content carries that source's own
// signal that results are present, so ExtractWithFallback can tell a
// genuine empty result set apart from a parser broken by a markup or
// schema change.
type Extractor interface {
	Extract(content []byte, query Query) ([]Candidate, error)
	HasResultsIndicator(content []byte) bool
}

// ExtractorFunc adapts a plain function to the Extractor interface, using
// the generic results indicator. It exists for tests exercising
// ExtractWithFallback's own logic rather than any one source's parsing.
type ExtractorFunc func(content []byte, query Query) ([]Candidate, error)

func (f ExtractorFunc) Extract(content []byte, query Query) ([]Candidate, error) {
	return f(content, query)
}

func (f ExtractorFunc) HasResultsIndicator(content []byte) bool {
	return hasResultsIndicator(string(content))
}

// score fills in Candidate.Score from the shared match-confidence model.
func score(source string, c Candidate, query Query) Candidate {
	c.Source = source
	c.Score = scoring.Score(scoring.Record{
		Name:       c.Name,
		BirthYear:  c.BirthYear,
		BirthPlace: c.BirthPlace,
		DeathYear:  c.DeathYear,
		DeathPlace: c.DeathPlace,
		URL:        c.URL,
		HasFather:  c.Father != "",
		HasMother:  c.Mother != "",
		HasParents: c.HasParents,
	}, query.scoringQuery())

	return c
}

func fallbackCandidate(source, url string, kind ParseError) Candidate {
	return Candidate{
		Source:     source,
		Name:       string(kind),
		URL:        url,
		Score:      50,
		ParseError: kind,
	}
}

// ExtractWithFallback runs ex and degrades gracefully instead of reporting
// NO_MATCH on a page that plainly has results: a zero-record return on a
// page whose body carries a results indicator becomes a single PARSE_FAILED
// fallback candidate, and an extractor error becomes PARSE_ERROR, so a
// parser broken by a markup change surfaces as "needs maintenance" rather
// than silently reporting no match.
func ExtractWithFallback(ex Extractor, source string, content []byte, query Query, url string) []Candidate {
	records, err := ex.Extract(content, query)
	if err != nil {
		return []Candidate{fallbackCandidate(source, url, ParseErrored)}
	}

	if len(records) == 0 && ex.HasResultsIndicator(content) {
		return []Candidate{fallbackCandidate(source, url, ParseFailed)}
	}

	return records
}

// wrapErr is a small helper so per-source files read uniformly:
// `return nil, wrapErr(source, "parse html", err)`.
func wrapErr(source, action string, err error) error {
	return fmt.Errorf("%s: %s: %w", source, action, err)
}
