package extract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractWithFallbackPassesThroughRecords(t *testing.T) {
	ex := ExtractorFunc(func(content []byte, query Query) ([]Candidate, error) {
		return []Candidate{{Name: "Jean Martin"}}, nil
	})

	out := ExtractWithFallback(ex, "findagrave", []byte("no indicator here"), Query{}, "https://example.test/search")

	require.Len(t, out, 1)
	assert.Equal(t, "Jean Martin", out[0].Name)
}

func TestExtractWithFallbackParseFailedWhenPageHasResults(t *testing.T) {
	ex := ExtractorFunc(func(content []byte, query Query) ([]Candidate, error) {
		return nil, nil
	})

	out := ExtractWithFallback(ex, "findagrave", []byte("12 results found"), Query{}, "https://example.test/search")

	require.Len(t, out, 1)
	assert.Equal(t, string(ParseFailed), out[0].Name)
	assert.Equal(t, ParseFailed, out[0].ParseError)
	assert.Equal(t, 50, out[0].Score)
}

func TestExtractWithFallbackNoMatchWhenPageHasNoResults(t *testing.T) {
	ex := ExtractorFunc(func(content []byte, query Query) ([]Candidate, error) {
		return nil, nil
	})

	out := ExtractWithFallback(ex, "findagrave", []byte("nothing to see"), Query{}, "https://example.test/search")

	assert.Empty(t, out)
}

func TestExtractWithFallbackParseErrorOnExtractorError(t *testing.T) {
	ex := ExtractorFunc(func(content []byte, query Query) ([]Candidate, error) {
		return nil, errors.New("boom")
	})

	out := ExtractWithFallback(ex, "geneanet", []byte("irrelevant"), Query{}, "https://example.test/search")

	require.Len(t, out, 1)
	assert.Equal(t, ParseErrored, out[0].ParseError)
}

// stubJSONExtractor stands in for a JSON-API source whose own
// HasResultsIndicator never matches the generic HTML regex set.
type stubJSONExtractor struct{ total int }

func (s stubJSONExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	return nil, nil
}

func (s stubJSONExtractor) HasResultsIndicator(content []byte) bool {
	return s.total > 0
}

func TestExtractWithFallbackUsesSourceSpecificIndicator(t *testing.T) {
	out := ExtractWithFallback(stubJSONExtractor{total: 5}, "wikitree", []byte(`{"total":5}`), Query{}, "https://example.test/search")

	require.Len(t, out, 1)
	assert.Equal(t, ParseFailed, out[0].ParseError)

	out = ExtractWithFallback(stubJSONExtractor{total: 0}, "wikitree", []byte(`{"total":0}`), Query{}, "https://example.test/search")
	assert.Empty(t, out)
}
