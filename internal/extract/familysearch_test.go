package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const familySearchSample = `{
  "results": [
    {
      "arkId": "ARK:/61903/1:1:ABCD-123",
      "name": "Jean Martin",
      "url": "https://www.familysearch.org/ark:/61903/1:1:ABCD-123",
      "birth": {"year": 1850, "place": "Lyon, France"},
      "death": {"year": 1920, "place": "Lyon, France"},
      "parents": ["Pierre Martin", "Mary Dubois"]
    },
    {
      "arkId": "ARK:/61903/1:1:ABCD-456",
      "name": "",
      "birth": {"year": 1800}
    }
  ]
}`

func TestFamilySearchExtractJSON(t *testing.T) {
	out, err := familySearchExtractor{}.Extract([]byte(familySearchSample), Query{Surname: "Martin", BirthYear: 1850})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "Jean Martin", c.Name)
	assert.Equal(t, 1850, c.BirthYear)
	assert.Equal(t, 1920, c.DeathYear)
	assert.Equal(t, "Pierre Martin", c.Father)
	assert.Equal(t, "Mary Dubois", c.Mother)
	assert.True(t, c.HasParents)
}

func TestFamilySearchSingleParentUsesGenderHeuristic(t *testing.T) {
	content := `{"results": [{"name": "Jean Martin", "birth": {"year": 1850}, "parents": ["Mary Dubois"]}]}`

	out, err := familySearchExtractor{}.Extract([]byte(content), Query{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Mary Dubois", out[0].Mother)
	assert.Empty(t, out[0].Father)
}

func TestFamilySearchExtractInvalidJSON(t *testing.T) {
	_, err := familySearchExtractor{}.Extract([]byte("not json"), Query{})
	require.Error(t, err)
}

func TestFamilySearchHasResultsIndicator(t *testing.T) {
	assert.True(t, familySearchExtractor{}.HasResultsIndicator([]byte(familySearchSample)))
	assert.False(t, familySearchExtractor{}.HasResultsIndicator([]byte(`{"results": []}`)))
	assert.False(t, familySearchExtractor{}.HasResultsIndicator([]byte("not json")))
}
