// Package scoring is the pure match-confidence function used to rank
// extracted records against the query that produced them (spec.md §4.6).
// Grounded on original_source/extraction/base_extractor.py's
// calculate_match_score, with the hand-rolled Python Levenshtein replaced
// by github.com/agnivade/levenshtein.
package scoring

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// Record is the subset of an extracted record's fields the scorer reads.
// Zero values (empty string, zero year) mean "absent" and never penalize.
type Record struct {
	Name       string
	BirthYear  int
	BirthPlace string
	DeathYear  int
	DeathPlace string
	URL        string
	HasFather  bool
	HasMother  bool
	HasParents bool
}

// Query is the search the record is being scored against.
type Query struct {
	Surname   string
	GivenName string
	Location  string
	BirthYear int
}

const (
	neutral  = 50
	minScore = 0
	maxScore = 100
)

// Score computes a match-confidence value in [0,100]. It starts at 50
// (neutral - a record was found) and only adjusts on fields present on
// both sides; missing search or record data never penalizes.
func Score(record Record, query Query) int {
	score := neutral

	name := strings.ToLower(record.Name)

	score += surnameScore(query.Surname, name)
	score += givenNameScore(query.GivenName, name)
	score += birthYearScore(query.BirthYear, record.BirthYear)
	score += locationScore(query.Location, record.BirthPlace)
	score += richnessBonus(record)

	if score < minScore {
		return minScore
	}

	if score > maxScore {
		return maxScore
	}

	return score
}

func surnameScore(surname, name string) int {
	surname = strings.ToLower(surname)
	if surname == "" || name == "" {
		return 0
	}

	if strings.Contains(name, surname) {
		return 25
	}

	if ratio(surname, extractSurname(name)) > 0.8 {
		return 15
	}

	if ratio(surname, name) > 0.5 {
		return 5
	}

	return 0
}

func givenNameScore(given, name string) int {
	given = strings.ToLower(given)
	if given == "" || name == "" {
		return 0
	}

	if strings.Contains(name, given) {
		return 15
	}

	nameParts := strings.Fields(name)
	if len(nameParts) > 0 && len(given) > 0 && given[0] == nameParts[0][0] {
		return 10
	}

	if ratio(given, name) > 0.7 {
		return 10
	}

	return 0
}

func birthYearScore(searchYear, recordYear int) int {
	if searchYear == 0 || recordYear == 0 {
		return 0
	}

	diff := searchYear - recordYear
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff == 0:
		return 20
	case diff <= 2:
		return 15
	case diff <= 5:
		return 10
	case diff <= 10:
		return 5
	case diff > 20:
		return -10
	default:
		return 0
	}
}

func locationScore(searchLoc, recordLoc string) int {
	searchLoc = strings.ToLower(searchLoc)
	recordLoc = strings.ToLower(recordLoc)

	if searchLoc == "" || recordLoc == "" {
		return 0
	}

	if strings.Contains(recordLoc, searchLoc) || strings.Contains(searchLoc, recordLoc) {
		return 10
	}

	if ratio(searchLoc, recordLoc) > 0.6 {
		return 5
	}

	return 0
}

func richnessBonus(record Record) int {
	bonus := 0

	if record.DeathYear != 0 {
		bonus += 2
	}

	if record.DeathPlace != "" {
		bonus += 2
	}

	if record.URL != "" {
		bonus += 2
	}

	if record.HasFather || record.HasMother || record.HasParents {
		bonus += 4
	}

	return bonus
}

// extractSurname picks the likely surname out of a full name: the first
// all-uppercase token of length ≥2 (common in European civil records), or
// the last whitespace-separated token otherwise.
func extractSurname(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return ""
	}

	for _, part := range parts {
		if len(part) > 1 && isUpper(part) {
			return strings.ToLower(part)
		}
	}

	return parts[len(parts)-1]
}

func isUpper(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.IsUpper(r) {
			return false
		}
	}

	return true
}

// ratio returns the Levenshtein similarity of s1 and s2 as 1 - (distance /
// max length), in [0,1]. Empty inputs never match.
func ratio(s1, s2 string) float64 {
	if s1 == "" || s2 == "" {
		return 0
	}

	if s1 == s2 {
		return 1
	}

	maxLen := len(s1)
	if len(s2) > maxLen {
		maxLen = len(s2)
	}

	distance := levenshtein.ComputeDistance(s1, s2)

	return 1 - float64(distance)/float64(maxLen)
}
