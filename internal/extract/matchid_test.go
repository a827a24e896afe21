package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const matchIDSample = `{
  "response": {
    "persons": [
      {
        "id": "abc123",
        "name": {"first": ["Jean"], "last": "MARTIN"},
        "birth": {"date": "18500301", "location": {"city": "Lyon"}},
        "death": {"date": "19201102", "location": {"city": ["Lyon", "Rhone"]}}
      }
    ]
  }
}`

func TestMatchIDExtractJSON(t *testing.T) {
	out, err := matchIDExtractor{}.Extract([]byte(matchIDSample), Query{Surname: "Martin", BirthYear: 1850})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "MARTIN, Jean", c.Name)
	assert.Equal(t, 1850, c.BirthYear)
	assert.Equal(t, "Lyon", c.BirthPlace)
	assert.Equal(t, 1920, c.DeathYear)
	assert.Equal(t, "Lyon", c.DeathPlace)
	assert.Equal(t, "https://deces.matchid.io/id/abc123", c.URL)
}

func TestMatchIDExtractNoPersonsReturnsEmpty(t *testing.T) {
	out, err := matchIDExtractor{}.Extract([]byte(`{"response": {"persons": []}}`), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMatchIDExtractInvalidJSON(t *testing.T) {
	_, err := matchIDExtractor{}.Extract([]byte("{"), Query{})
	require.Error(t, err)
}

func TestMatchIDHasResultsIndicator(t *testing.T) {
	assert.True(t, matchIDExtractor{}.HasResultsIndicator([]byte(matchIDSample)))
	assert.False(t, matchIDExtractor{}.HasResultsIndicator([]byte(`{"response": {"persons": []}}`)))
	assert.False(t, matchIDExtractor{}.HasResultsIndicator([]byte("{")))
}
