package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const anomSample = `
<html><body>
<table>
<tr class="type-notice">
  <td>
    <span class="unittitle">MARTIN Jean</span>
    <a href="/ark:/61561/vta9876543">Notice</a>
    <div class="items">
      <strong class="arc_libelle_strong">Territoire de détention :</strong>
      <p class="arc_firstp">Guyane.</p>
    </div>
    <div class="items">
      <strong class="arc_libelle_strong">Observations complémentaires :</strong>
      <p class="arc_firstp">Décédé le 5 mars 1875</p>
    </div>
  </td>
</tr>
</table>
</body></html>`

func TestAnomExtractBagneRow(t *testing.T) {
	out, err := anomExtractor{}.Extract([]byte(anomSample), Query{Surname: "Martin"})
	require.NoError(t, err)
	require.Len(t, out, 1)

	c := out[0]
	assert.Equal(t, "MARTIN Jean", c.Name)
	assert.Equal(t, 1875, c.DeathYear)
	assert.Equal(t, "Guyane", c.BirthPlace)
	assert.Equal(t, "https://recherche-anom.culture.gouv.fr/ark:/61561/vta9876543", c.URL)
}

func TestAnomExtractNoRowsReturnsEmpty(t *testing.T) {
	out, err := anomExtractor{}.Extract([]byte("<html><body>none</body></html>"), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestAnomHasResultsIndicator(t *testing.T) {
	assert.True(t, anomExtractor{}.HasResultsIndicator([]byte(anomSample)))
	assert.False(t, anomExtractor{}.HasResultsIndicator([]byte("<html><body>none</body></html>")))
}
