package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scotlandsPeopleTableSample = `
<html><body>
<table class="result-table">
<tr><th>Name</th><th>Details</th></tr>
<tr>
  <td><a href="/record/123">MARTIN Jean</a></td>
  <td>Born 1850 died 1920 Edinburgh</td>
</tr>
</table>
</body></html>`

func TestScotlandsPeopleExtractTableRows(t *testing.T) {
	out, err := scotlandsPeopleExtractor{}.Extract([]byte(scotlandsPeopleTableSample), Query{Surname: "Martin", BirthYear: 1850})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "MARTIN Jean", c.Name)
	assert.Equal(t, 1850, c.BirthYear)
	assert.Equal(t, 1920, c.DeathYear)
	assert.Equal(t, "Born 1850 died 1920 Edinburgh", c.BirthPlace)
	assert.Equal(t, "https://www.scotlandspeople.gov.uk/record/123", c.URL)
}

func TestScotlandsPeopleExtractNoResultsPhraseReturnsEmpty(t *testing.T) {
	out, err := scotlandsPeopleExtractor{}.Extract([]byte("<html><body>Your search returned no results</body></html>"), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestScotlandsPeopleExtractItemFallback(t *testing.T) {
	content := `<html><body><div class="result-row"><a href="/record/456">DUPONT Marie</a> born 1870</div></body></html>`

	out, err := scotlandsPeopleExtractor{}.Extract([]byte(content), Query{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "DUPONT Marie", out[0].Name)
	assert.Equal(t, 1870, out[0].BirthYear)
}

func TestScotlandsPeopleHasResultsIndicatorUsesGenericSet(t *testing.T) {
	assert.True(t, scotlandsPeopleExtractor{}.HasResultsIndicator([]byte("12 results found")))
	assert.False(t, scotlandsPeopleExtractor{}.HasResultsIndicator([]byte("<html><body>nothing</body></html>")))
}
