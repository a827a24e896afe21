package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// matchIDExtractor parses the MatchID French death-records API response,
// grounded on matchid_extractor.py's person-shaped JSON. Dates arrive as
// YYYYMMDD strings; only the year is kept, matching the scoring model's
// year-only comparison.
type matchIDExtractor struct{}

type matchIDResponse struct {
	Response struct {
		Persons []matchIDPerson `json:"persons"`
	} `json:"response"`
}

type matchIDPerson struct {
	ID    string       `json:"id"`
	Name  matchIDName  `json:"name"`
	Birth matchIDEvent `json:"birth"`
	Death matchIDEvent `json:"death"`
}

type matchIDName struct {
	First []string `json:"first"`
	Last  string   `json:"last"`
}

type matchIDEvent struct {
	Date     string          `json:"date"`
	Location matchIDLocation `json:"location"`
}

type matchIDLocation struct {
	City interface{} `json:"city"`
}

func (matchIDExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	var payload matchIDResponse
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, wrapErr("matchid", "parse json", err)
	}

	var out []Candidate

	for i, p := range payload.Response.Persons {
		if i >= 20 {
			break
		}

		if c, ok := extractMatchIDPerson(p); ok {
			out = append(out, score("matchid", c, query))
		}
	}

	return out, nil
}

// HasResultsIndicator parses the same envelope Extract does and checks for
// a non-empty persons list, the JSON-API analogue of wikitree's total
// field: a decoded response with entries that all failed to yield a
// Candidate is a genuine parser failure, not an empty search.
func (matchIDExtractor) HasResultsIndicator(content []byte) bool {
	var payload matchIDResponse
	if err := json.Unmarshal(content, &payload); err != nil {
		return false
	}

	return len(payload.Response.Persons) > 0
}

func extractMatchIDPerson(p matchIDPerson) (Candidate, bool) {
	name := strings.TrimSpace(p.Name.Last)
	if len(p.Name.First) > 0 {
		name = strings.TrimSpace(p.Name.Last + ", " + strings.Join(p.Name.First, " "))
	}

	if name == "" {
		return Candidate{}, false
	}

	return Candidate{
		Name:       name,
		BirthYear:  matchIDYear(p.Birth.Date),
		BirthPlace: matchIDCity(p.Birth.Location),
		DeathYear:  matchIDYear(p.Death.Date),
		DeathPlace: matchIDCity(p.Death.Location),
		URL:        "https://deces.matchid.io/id/" + p.ID,
	}, true
}

func matchIDYear(date string) int {
	if len(date) < 4 {
		return 0
	}

	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}

	return y
}

func matchIDCity(loc matchIDLocation) string {
	switch v := loc.City.(type) {
	case string:
		return v
	case []interface{}:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return s
			}
		}
	}

	return ""
}
