package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const findAGraveSample = `
<html><body>
<div class="memorial-item">
  <a href="/memorial/12345">
    <h2 class="name-grave"><i>John Smith</i></h2>
  </a>
  <b class="birthDeathDates">15 Aug 1871 &#8211; 25 Oct 1899</b>
  <div>
    Smith Family Cemetery
    Dorchester, Suffolk County, Massachusetts
    Plot info: Section 4
  </div>
</div>
</body></html>`

func TestFindAGraveExtractHTML(t *testing.T) {
	out, err := findAGraveExtractor{}.Extract([]byte(findAGraveSample), Query{Surname: "Smith", BirthYear: 1871})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "John Smith", c.Name)
	assert.Equal(t, 1871, c.BirthYear)
	assert.Equal(t, 1899, c.DeathYear)
	assert.Equal(t, "https://www.findagrave.com/memorial/12345", c.URL)
	assert.Equal(t, "findagrave", c.Source)
}

func TestFindAGraveExtractFallsBackToTextWhenNoCards(t *testing.T) {
	content := "John Smith /memorial/99887 born 1880 died 1950 in London"

	out, err := findAGraveExtractor{}.Extract([]byte(content), Query{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://www.findagrave.com/memorial/99887", out[0].URL)
}

func TestFindAGraveExtractNoMemorialsReturnsEmpty(t *testing.T) {
	out, err := findAGraveExtractor{}.Extract([]byte("<html><body>no matches</body></html>"), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFindAGraveHasResultsIndicator(t *testing.T) {
	assert.True(t, findAGraveExtractor{}.HasResultsIndicator([]byte(findAGraveSample)))
	assert.True(t, findAGraveExtractor{}.HasResultsIndicator([]byte("42 memorials found")))
	assert.False(t, findAGraveExtractor{}.HasResultsIndicator([]byte("<html><body>no matches</body></html>")))
}
