package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geniSample = `
<html><body>
<table>
<tr class="profile-layout-grid">
  <td class="name-grid-area">
    <a href="/people/Jean-Martin/6000000012345">Jean Martin</a>
    <div class="small">1850 - 1920</div>
    <div class="small">Lyon, France</div>
  </td>
</tr>
</table>
</body></html>`

func TestGeniExtractHTML(t *testing.T) {
	out, err := geniExtractor{}.Extract([]byte(geniSample), Query{Surname: "Martin", BirthYear: 1850})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "Jean Martin", c.Name)
	assert.Equal(t, 1850, c.BirthYear)
	assert.Equal(t, 1920, c.DeathYear)
	assert.Equal(t, "Lyon, France", c.BirthPlace)
	assert.Equal(t, "https://www.geni.com/people/Jean-Martin/6000000012345", c.URL)
	assert.Equal(t, "geni", c.Source)
}

func TestGeniExtractNoRowsReturnsEmpty(t *testing.T) {
	out, err := geniExtractor{}.Extract([]byte("<html><body>no rows</body></html>"), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGeniHasResultsIndicator(t *testing.T) {
	assert.True(t, geniExtractor{}.HasResultsIndicator([]byte(geniSample)))
	assert.True(t, geniExtractor{}.HasResultsIndicator([]byte("Showing 1-20 of 134 people")))
	assert.False(t, geniExtractor{}.HasResultsIndicator([]byte("<html><body>no rows</body></html>")))
}
