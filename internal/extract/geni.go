package extract

import (
	"bytes"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// geniExtractor reads tr.profile-layout-grid rows, grounded on
// geni_extractor.py's table-based search results.
type geniExtractor struct{}

var geniProfileLinkPattern = regexp.MustCompile(`^/people/[^/]+/\d+$`)

var geniResultsIndicators = compileIndicators([]string{
	`Showing \d+-\d+ of [\d,]+ people`,
	`\d+-\d+ of \d+ people`,
})

// HasResultsIndicator checks Geni's own paging banner and profile-link
// markers, grounded on geni_extractor.py:201.
func (geniExtractor) HasResultsIndicator(content []byte) bool {
	text := string(content)

	return matchesAny(text, geniResultsIndicators) || containsAnyFold(text, "/people/", "Search Results")
}

func (geniExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, wrapErr("geni", "parse html", err)
	}

	rows := doc.Find("tr.profile-layout-grid")

	var out []Candidate

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= 20 {
			return false
		}

		if c, ok := extractGeniProfile(row); ok {
			out = append(out, score("geni", c, query))
		}

		return true
	})

	return out, nil
}

func extractGeniProfile(row *goquery.Selection) (Candidate, bool) {
	nameCell := row.Find("td.name-grid-area").First()
	if nameCell.Length() == 0 {
		return Candidate{}, false
	}

	nameLink := nameCell.Find("a[href]").FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return geniProfileLinkPattern.MatchString(href)
	}).First()

	if nameLink.Length() == 0 {
		return Candidate{}, false
	}

	name := cleanText(nameLink.Text())
	if name == "" {
		return Candidate{}, false
	}

	href, _ := nameLink.Attr("href")
	url := absoluteURL("https://www.geni.com", href)

	var place string

	var birthYear, deathYear int

	nameCell.Find("div.small").Each(func(_ int, div *goquery.Selection) {
		text := cleanText(div.Text())
		if b, d, ok := dateRange(text); ok {
			birthYear, deathYear = b, d

			return
		}

		if text != "" && place == "" && len(years(text)) == 0 {
			place = text
		}
	})

	return Candidate{
		Name:       name,
		BirthYear:  birthYear,
		BirthPlace: place,
		DeathYear:  deathYear,
		DeathPlace: place,
		URL:        url,
	}, true
}
