package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const freeBMDSample = `
<html><body><script>
var searchData = new Array("Births;Jun;Q2;1850","X;MARTIN;Jean;X;X;Lyon;X;X;REF123","X;;;X;X;Rhone;X;X;REF456");
</script></body></html>`

func TestFreeBMDExtractEntries(t *testing.T) {
	out, err := freeBMDExtractor{}.Extract([]byte(freeBMDSample), Query{Surname: "Martin", BirthYear: 1850})
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "Jean MARTIN", out[0].Name)
	assert.Equal(t, 1850, out[0].BirthYear)
	assert.Equal(t, "Lyon", out[0].BirthPlace)
	assert.Equal(t, "https://www.freebmd.org.uk/cgi/information.pl?r=REF123", out[0].URL)

	assert.Equal(t, "Jean MARTIN", out[1].Name)
	assert.Equal(t, "Rhone", out[1].BirthPlace)
	assert.Equal(t, "https://www.freebmd.org.uk/cgi/information.pl?r=REF456", out[1].URL)
}

func TestFreeBMDExtractNoSearchDataReturnsEmpty(t *testing.T) {
	out, err := freeBMDExtractor{}.Extract([]byte("<html><body>no data here</body></html>"), Query{})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestFreeBMDHasResultsIndicator(t *testing.T) {
	assert.True(t, freeBMDExtractor{}.HasResultsIndicator([]byte(freeBMDSample)))
	assert.False(t, freeBMDExtractor{}.HasResultsIndicator([]byte("<html><body>no data here</body></html>")))
}
