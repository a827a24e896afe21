package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const wikiTreeSample = `[
  {
    "matches": [
      {
        "Id": 12345,
        "Name": "Martin-4567",
        "FirstName": "Jean",
        "LastName": "Martin",
        "BirthDate": "1850-03-01",
        "DeathDate": "1920-11-02",
        "BirthLocation": "Lyon, France"
      }
    ],
    "total": 1
  }
]`

func TestWikiTreeExtractJSON(t *testing.T) {
	out, err := wikiTreeExtractor{}.Extract([]byte(wikiTreeSample), Query{Surname: "Martin", BirthYear: 1850})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "Jean Martin", c.Name)
	assert.Equal(t, 1850, c.BirthYear)
	assert.Equal(t, 1920, c.DeathYear)
	assert.Equal(t, "Lyon, France", c.BirthPlace)
	assert.Equal(t, "https://www.wikitree.com/wiki/Martin-4567", c.URL)
}

func TestWikiTreeDerivesLastNameFromNameWhenMissing(t *testing.T) {
	content := `[{"matches": [{"Id": 1, "Name": "Dupont-22", "FirstName": "Marie", "BirthDate": "1870"}]}]`

	out, err := wikiTreeExtractor{}.Extract([]byte(content), Query{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Marie Dupont", out[0].Name)
}

func TestWikiTreeExtractEmptyEnvelopeReturnsEmpty(t *testing.T) {
	out, err := wikiTreeExtractor{}.Extract([]byte("[]"), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestWikiTreeHasResultsIndicatorReadsTotal(t *testing.T) {
	assert.True(t, wikiTreeExtractor{}.HasResultsIndicator([]byte(`[{"matches": [], "total": 3}]`)))
	assert.False(t, wikiTreeExtractor{}.HasResultsIndicator([]byte(`[{"matches": [], "total": 0}]`)))
	assert.False(t, wikiTreeExtractor{}.HasResultsIndicator([]byte("[]")))
	assert.False(t, wikiTreeExtractor{}.HasResultsIndicator([]byte("not json")))
}

// TestWikiTreeParseFailedOnZeroCandidatesWithNonzeroTotal is the bug this
// method fixes: a JSON API response has no HTML results banner, so only a
// source-specific indicator can ever surface PARSE_FAILED for it.
func TestWikiTreeParseFailedOnZeroCandidatesWithNonzeroTotal(t *testing.T) {
	content := []byte(`[{"matches": [{"Id": 1}], "total": 1}]`)

	out := ExtractWithFallback(wikiTreeExtractor{}, "wikitree", content, Query{}, "https://www.wikitree.com/search")

	require.Len(t, out, 1)
	assert.Equal(t, ParseFailed, out[0].ParseError)
}
