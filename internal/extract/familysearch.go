package extract

import (
	"encoding/json"

	"github.com/kindred-labs/genealogy-enrich/internal/scoring"
)

// familySearchExtractor parses the FamilySearch personas JSON API
// (access_model: json-api in internal/sources). The original Python
// extractor scraped a rendered HTML results table instead; this rendition
// consumes the structured API response the url_template already targets,
// carrying over its field model (name, birth/death year+place, parents)
// and its gender-based father/mother disambiguation from
// familysearch_extractor.py's _detect_gender, now scoring.AssignParents.
type familySearchExtractor struct{}

type familySearchResponse struct {
	Results []familySearchPersona `json:"results"`
}

type familySearchPersona struct {
	ArkID   string            `json:"arkId"`
	Name    string            `json:"name"`
	URL     string            `json:"url"`
	Birth   familySearchEvent `json:"birth"`
	Death   familySearchEvent `json:"death"`
	Parents []string          `json:"parents"`
}

type familySearchEvent struct {
	Year  int    `json:"year"`
	Place string `json:"place"`
}

func (familySearchExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	var payload familySearchResponse
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, wrapErr("familysearch", "parse json", err)
	}

	var out []Candidate

	for i, persona := range payload.Results {
		if i >= 20 {
			break
		}

		if c, ok := extractFamilySearchPersona(persona); ok {
			out = append(out, score("familysearch", c, query))
		}
	}

	return out, nil
}

// HasResultsIndicator checks for a non-empty results array rather than the
// text-based indicators familysearch_extractor.py:374 used against its
// rendered HTML, since this rendition consumes the structured API
// response directly (see the package comment above).
func (familySearchExtractor) HasResultsIndicator(content []byte) bool {
	var payload familySearchResponse
	if err := json.Unmarshal(content, &payload); err != nil {
		return false
	}

	return len(payload.Results) > 0
}

func extractFamilySearchPersona(p familySearchPersona) (Candidate, bool) {
	if p.Name == "" {
		return Candidate{}, false
	}

	father, mother := "", ""

	if len(p.Parents) >= 2 {
		father, mother = scoring.AssignParents(p.Parents[0], p.Parents[1])
	} else if len(p.Parents) == 1 {
		if scoring.DetectGender(p.Parents[0]) == scoring.GenderFemale {
			mother = p.Parents[0]
		} else {
			father = p.Parents[0]
		}
	}

	return Candidate{
		Name:       p.Name,
		BirthYear:  p.Birth.Year,
		BirthPlace: p.Birth.Place,
		DeathYear:  p.Death.Year,
		DeathPlace: p.Death.Place,
		URL:        p.URL,
		Father:     father,
		Mother:     mother,
		HasParents: father != "" || mother != "",
	}, true
}
