// Package location is the French gazetteer resolver (spec.md §4.7): a
// static, embedded dataset of regions, departments, and cities used to
// attach GeoNames-style location filters to the sources whose descriptors
// require them. Grounded on
// original_source/src/genealogy_extractors/location_resolver.py's matching
// tiers and historical-region alias table.
package location

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Type enumerates the gazetteer entry kinds a Source descriptor can filter on.
type Type string

const (
	TypeRegion     Type = "region"
	TypeDepartment Type = "department"
	TypeCity       Type = "city"
)

// Location is one gazetteer entry.
type Location struct {
	GID          int     `json:"gid"`
	Name         string  `json:"name"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	FeatureCode  string  `json:"feature_code"`
	Type         Type    `json:"type"`
	RegionID     int     `json:"region_id"`
	DepartmentID int     `json:"department_id"`
	Region       string  `json:"region"`
	Department   string  `json:"department"`
	Population   int     `json:"population"`
}

// RadiusFlag returns the search-radius parameter a source template expects:
// a 20km radius for cities, none for regions and departments.
func (l Location) RadiusFlag() int {
	if l.Type == TypeCity {
		return 2
	}

	return 0
}

// historicalRegionAliases maps pre-2016 French region names to their
// current equivalents, so a search for "Alsace" resolves to "Grand Est".
var historicalRegionAliases = map[string]string{
	"alsace":                "Grand Est",
	"lorraine":              "Grand Est",
	"champagne-ardenne":     "Grand Est",
	"champagne":             "Grand Est",
	"picardie":              "Hauts-de-France",
	"picardy":               "Hauts-de-France",
	"nord-pas-de-calais":    "Hauts-de-France",
	"aquitaine":             "Nouvelle-Aquitaine",
	"limousin":              "Nouvelle-Aquitaine",
	"poitou-charentes":      "Nouvelle-Aquitaine",
	"languedoc-roussillon":  "Occitanie",
	"midi-pyrénées":         "Occitanie",
	"midi-pyrenees":         "Occitanie",
	"auvergne":              "Auvergne-Rhône-Alpes",
	"rhône-alpes":           "Auvergne-Rhône-Alpes",
	"rhone-alpes":           "Auvergne-Rhône-Alpes",
	"bourgogne":             "Bourgogne-Franche-Comté",
	"burgundy":              "Bourgogne-Franche-Comté",
	"franche-comté":         "Bourgogne-Franche-Comté",
	"franche-comte":         "Bourgogne-Franche-Comté",
	"basse-normandie":       "Normandie",
	"haute-normandie":       "Normandie",
	"centre":                "Centre-Val de Loire",
}

// locationArticles are stripped as leading noise before normalized matching.
var locationArticles = []string{"le ", "la ", "les ", "l'", "de ", "du ", "des ", "d'"}

//go:embed locations.json
var embeddedLocations embed.FS

// Resolver answers location lookups against the embedded gazetteer.
type Resolver struct {
	locations []Location
}

// Load parses the embedded gazetteer into a Resolver.
func Load() (*Resolver, error) {
	data, err := embeddedLocations.ReadFile("locations.json")
	if err != nil {
		return nil, fmt.Errorf("read embedded locations.json: %w", err)
	}

	var locations []Location
	if err := json.Unmarshal(data, &locations); err != nil {
		return nil, fmt.Errorf("parse locations.json: %w", err)
	}

	return &Resolver{locations: locations}, nil
}

// stripDiacritics removes combining marks (accents) via NFD decomposition.
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func normalize(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))

	stripped, _, err := transform.String(stripDiacritics, lowered)
	if err != nil {
		stripped = lowered
	}

	for _, article := range locationArticles {
		if strings.HasPrefix(stripped, article) {
			stripped = stripped[len(article):]

			break
		}
	}

	stripped = strings.ReplaceAll(stripped, "-", " ")
	stripped = strings.Join(strings.Fields(stripped), " ")

	return stripped
}

// Find resolves query against the gazetteer, optionally restricted to
// typeFilter, in priority order: historical-region alias, exact
// case-insensitive match, normalized equality, normalized prefix,
// normalized substring. The first hit in a tier wins; tiers are tried in
// order and a hit in an earlier tier short-circuits the rest.
func (r *Resolver) Find(query string, typeFilter Type) (Location, bool) {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	queryNormalized := normalize(query)

	if aliased, ok := historicalRegionAliases[queryLower]; ok {
		for _, loc := range r.locations {
			if loc.Name == aliased {
				return loc, true
			}
		}
	}

	if loc, ok := r.findWhere(typeFilter, func(loc Location) bool {
		return strings.ToLower(loc.Name) == queryLower
	}); ok {
		return loc, true
	}

	if loc, ok := r.findWhere(typeFilter, func(loc Location) bool {
		return normalize(loc.Name) == queryNormalized
	}); ok {
		return loc, true
	}

	if loc, ok := r.findWhere(typeFilter, func(loc Location) bool {
		return strings.HasPrefix(normalize(loc.Name), queryNormalized)
	}); ok {
		return loc, true
	}

	return r.findWhere(typeFilter, func(loc Location) bool {
		return strings.Contains(normalize(loc.Name), queryNormalized)
	})
}

func (r *Resolver) findWhere(typeFilter Type, match func(Location) bool) (Location, bool) {
	for _, loc := range r.locations {
		if typeFilter != "" && loc.Type != typeFilter {
			continue
		}

		if match(loc) {
			return loc, true
		}
	}

	return Location{}, false
}

// FindRegion resolves query against region-type entries only.
func (r *Resolver) FindRegion(query string) (Location, bool) { return r.Find(query, TypeRegion) }

// FindDepartment resolves query against department-type entries only.
func (r *Resolver) FindDepartment(query string) (Location, bool) {
	return r.Find(query, TypeDepartment)
}

// FindCity resolves query against city-type entries only.
func (r *Resolver) FindCity(query string) (Location, bool) { return r.Find(query, TypeCity) }
