package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// freeBMDExtractor parses the inline searchData JavaScript array FreeBMD
// embeds in its results page, grounded on freebmd_extractor.py. Surname
// and given name are only populated on the first row of a group; later
// rows inherit the most recently seen values. The page-level "3000 record
// limit exceeded, narrow the year range and retry" behavior belongs to the
// fetch step (a form-submit source drives its own retry), not to parsing.
type freeBMDExtractor struct{}

var searchDataPattern = regexp.MustCompile(`(?s)var\s+searchData\s*=\s*new\s+Array\s*\((.*?)\)\s*;`)
var quotedEntryPattern = regexp.MustCompile(`"([^"]*)"`)

func (freeBMDExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	text := string(content)

	m := searchDataPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}

	entryMatches := quotedEntryPattern.FindAllStringSubmatch(m[1], -1)
	if len(entryMatches) == 0 {
		return nil, nil
	}

	header := strings.Split(entryMatches[0][1], ";")

	var year int

	if len(header) >= 4 {
		if y, err := strconv.Atoi(header[3]); err == nil {
			year = y
		}
	}

	var currentSurname, currentGiven string

	var out []Candidate

	for i, m := range entryMatches[1:] {
		if i >= 50 {
			break
		}

		c, surname, given, ok := parseFreeBMDEntry(m[1], currentSurname, currentGiven, year)
		if !ok {
			continue
		}

		if surname != "" {
			currentSurname = surname
		}

		if given != "" {
			currentGiven = given
		}

		out = append(out, score("freebmd", c, query))
	}

	return out, nil
}

// HasResultsIndicator checks for the searchData array marker itself,
// grounded on freebmd_extractor.py:138-140.
func (freeBMDExtractor) HasResultsIndicator(content []byte) bool {
	return strings.Contains(string(content), "var searchData")
}

func parseFreeBMDEntry(entry, currentSurname, currentGiven string, year int) (c Candidate, surname, given string, ok bool) {
	parts := strings.Split(entry, ";")
	if len(parts) < 8 {
		return Candidate{}, "", "", false
	}

	surname = strings.TrimSpace(parts[1])
	if surname == "" {
		surname = currentSurname
	}

	given = strings.TrimSpace(parts[2])
	if given == "" {
		given = currentGiven
	}

	if surname == "" && given == "" {
		return Candidate{}, "", "", false
	}

	district := parts[5]
	if len(parts) > 5 {
		if decoded, err := url.QueryUnescape(parts[5]); err == nil {
			district = decoded
		}
	}

	reference := ""
	if len(parts) > 8 {
		reference = parts[8]
	}

	name := cleanText(given + " " + surname)

	return Candidate{
		Name:       name,
		BirthYear:  year,
		BirthPlace: district,
		URL:        "https://www.freebmd.org.uk/cgi/information.pl?r=" + reference,
	}, surname, given, true
}
