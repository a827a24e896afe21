package location_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kindred-labs/genealogy-enrich/internal/location"
)

func loadResolver(t *testing.T) *location.Resolver {
	t.Helper()

	resolver, err := location.Load()
	require.NoError(t, err)

	return resolver
}

func TestFindExactMatch(t *testing.T) {
	resolver := loadResolver(t)

	loc, ok := resolver.Find("Lyon", location.TypeCity)
	require.True(t, ok)
	assert.Equal(t, "Lyon", loc.Name)
	assert.Equal(t, location.TypeCity, loc.Type)
}

func TestFindHistoricalRegionAlias(t *testing.T) {
	resolver := loadResolver(t)

	loc, ok := resolver.Find("Alsace", "")
	require.True(t, ok)
	assert.Equal(t, "Grand Est", loc.Name)
}

func TestFindNormalizedMatchStripsAccentsAndArticles(t *testing.T) {
	resolver := loadResolver(t)

	loc, ok := resolver.Find("cote d'azur", "")
	require.True(t, ok)
	assert.Equal(t, "Provence-Alpes-Côte d'Azur", loc.Name)
}

func TestFindPrefixMatch(t *testing.T) {
	resolver := loadResolver(t)

	loc, ok := resolver.Find("Bordea", location.TypeCity)
	require.True(t, ok)
	assert.Equal(t, "Bordeaux", loc.Name)
}

func TestFindSubstringMatch(t *testing.T) {
	resolver := loadResolver(t)

	loc, ok := resolver.Find("trasbour", location.TypeCity)
	require.True(t, ok)
	assert.Equal(t, "Strasbourg", loc.Name)
}

func TestFindNoMatch(t *testing.T) {
	resolver := loadResolver(t)

	_, ok := resolver.Find("Atlantis", location.TypeCity)
	assert.False(t, ok)
}

func TestFindRespectsTypeFilter(t *testing.T) {
	resolver := loadResolver(t)

	_, ok := resolver.Find("Lyon", location.TypeRegion)
	assert.False(t, ok)
}

func TestRadiusFlag(t *testing.T) {
	resolver := loadResolver(t)

	city, ok := resolver.FindCity("Nice")
	require.True(t, ok)
	assert.Equal(t, 2, city.RadiusFlag())

	region, ok := resolver.FindRegion("Bretagne")
	require.True(t, ok)
	assert.Equal(t, 0, region.RadiusFlag())
}
