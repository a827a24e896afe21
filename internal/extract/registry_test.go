package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var activeSourceKeys = []string{
	"findagrave", "billiongraves", "wikitree", "geni", "geneanet", "filae",
	"archivesdepartementales", "ancestry", "myheritage", "familysearch",
	"freebmd", "scotlandspeople", "irishgenealogy", "digitalarkivet",
	"antenati", "matchid", "anom",
}

func TestNewRegistryCoversEveryActiveSource(t *testing.T) {
	reg := NewRegistry()

	for _, key := range activeSourceKeys {
		ex, err := reg.Get(key)
		require.NoError(t, err, key)
		assert.NotNil(t, ex, key)
	}
}

func TestRegistryGetUnknownSource(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get("matricula")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matricula")
}
