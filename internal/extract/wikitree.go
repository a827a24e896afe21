package extract

import (
	"encoding/json"
	"strings"
)

// wikiTreeExtractor parses the WikiTree SearchPerson API's JSON response,
// grounded on wikitree_extractor.py. The API wraps results in a
// single-element array whose first entry carries the match list.
type wikiTreeExtractor struct{}

type wikiTreeEnvelope struct {
	Matches []wikiTreeMatch `json:"matches"`
	Total   int             `json:"total"`
}

type wikiTreeMatch struct {
	ID            int    `json:"Id"`
	Name          string `json:"Name"`
	FirstName     string `json:"FirstName"`
	LastName      string `json:"LastName"`
	BirthDate     string `json:"BirthDate"`
	DeathDate     string `json:"DeathDate"`
	BirthLocation string `json:"BirthLocation"`
}

func (wikiTreeExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	var envelopes []wikiTreeEnvelope
	if err := json.Unmarshal(content, &envelopes); err != nil {
		return nil, wrapErr("wikitree", "parse json", err)
	}

	if len(envelopes) == 0 {
		return nil, nil
	}

	var out []Candidate

	for i, m := range envelopes[0].Matches {
		if i >= 20 {
			break
		}

		if c, ok := extractWikiTreeMatch(m); ok {
			out = append(out, score("wikitree", c, query))
		}
	}

	return out, nil
}

// HasResultsIndicator parses the same envelope Extract does and checks the
// API's own total count, grounded on wikitree_extractor.py:93. A JSON
// response has no HTML results banner for the generic regex fallback to
// catch, so this is the only signal that a zero-candidate Extract is a
// genuine parser failure rather than a genuine empty search.
func (wikiTreeExtractor) HasResultsIndicator(content []byte) bool {
	var envelopes []wikiTreeEnvelope
	if err := json.Unmarshal(content, &envelopes); err != nil {
		return false
	}

	if len(envelopes) == 0 {
		return false
	}

	return envelopes[0].Total > 0
}

func extractWikiTreeMatch(m wikiTreeMatch) (Candidate, bool) {
	lastName := m.LastName
	if lastName == "" && m.Name != "" {
		if idx := strings.IndexByte(m.Name, '-'); idx >= 0 {
			lastName = m.Name[:idx]
		}
	}

	name := cleanText(m.FirstName + " " + lastName)
	if name == "" {
		return Candidate{}, false
	}

	var birthYear int
	if ys := years(m.BirthDate); len(ys) > 0 {
		birthYear = ys[0]
	}

	var url string
	if m.Name != "" {
		url = "https://www.wikitree.com/wiki/" + m.Name
	}

	var deathYear int
	if ys := years(m.DeathDate); len(ys) > 0 {
		deathYear = ys[0]
	}

	return Candidate{
		Name:       name,
		BirthYear:  birthYear,
		BirthPlace: m.BirthLocation,
		DeathYear:  deathYear,
		URL:        url,
	}, true
}

