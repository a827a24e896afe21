package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// scotlandsPeopleExtractor parses the ScotlandsPeople results table,
// grounded on scotlandspeople_extractor.py. No-results and error pages are
// checked first since the form-submit fetch can land on either.
type scotlandsPeopleExtractor struct{}

var scotlandNoResultsPhrases = []string{
	"no results found", "no records found", "0 results",
	"no matching records", "your search returned no results",
}

var scotlandErrorPhrases = []string{
	"error 404", "page not found", "server error", "service unavailable",
}

var scottishPlaceWords = []string{"Edinburgh", "Glasgow", "Aberdeen", "Dundee", "Parish"}

// HasResultsIndicator falls back to the generic indicator set: the Python
// original never overrides it, relying instead on _is_no_results/
// _is_error_page to short-circuit extraction before parsing, which this
// port already does at the top of Extract.
func (scotlandsPeopleExtractor) HasResultsIndicator(content []byte) bool {
	return hasResultsIndicator(string(content))
}

func (scotlandsPeopleExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	text := string(content)
	if containsAnyFold(text, scotlandNoResultsPhrases...) || containsAnyFold(text, scotlandErrorPhrases...) {
		return nil, nil
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, wrapErr("scotlandspeople", "parse html", err)
	}

	tables := doc.Find(`table[class*="result"], table[class*="record"], table[class*="search"]`)
	if tables.Length() > 0 {
		var out []Candidate

		tables.Each(func(_ int, table *goquery.Selection) {
			rows := table.Find("tr")
			rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
				if i == 0 {
					return true // header row
				}

				if i > 20 {
					return false
				}

				if c, ok := extractScotlandRow(row); ok {
					out = append(out, score("scotlandspeople", c, query))
				}

				return true
			})
		})

		return out, nil
	}

	items := doc.Find(`div[class*="result"], div[class*="record"], li[class*="result"], li[class*="record"]`)

	var out []Candidate

	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= 20 {
			return false
		}

		if c, ok := extractScotlandItem(item); ok {
			out = append(out, score("scotlandspeople", c, query))
		}

		return true
	})

	return out, nil
}

func extractScotlandRow(row *goquery.Selection) (Candidate, bool) {
	cells := row.Find("td, th")
	if cells.Length() < 2 {
		return Candidate{}, false
	}

	link := row.Find("a[href]").First()

	name := cleanText(link.Text())
	if name == "" {
		name = cleanText(cells.First().Text())
	}

	if len(name) < 2 {
		return Candidate{}, false
	}

	href, _ := link.Attr("href")
	url := absoluteURL("https://www.scotlandspeople.gov.uk", href)

	fullText := cleanText(row.Text())

	ys := years(fullText)

	var birthYear, deathYear int
	if len(ys) > 0 {
		birthYear = ys[0]
	}

	if len(ys) > 1 {
		deathYear = ys[1]
	}

	var location string

	cells.EachWithBreak(func(i int, cell *goquery.Selection) bool {
		if i == 0 {
			return true
		}

		text := cleanText(cell.Text())
		if containsAnyFold(text, scottishPlaceWords...) {
			location = text

			return false
		}

		return true
	})

	return Candidate{
		Name:       name,
		BirthYear:  birthYear,
		DeathYear:  deathYear,
		BirthPlace: location,
		URL:        url,
	}, true
}

func extractScotlandItem(item *goquery.Selection) (Candidate, bool) {
	link := item.Find("a[href]").First()

	name := cleanText(link.Text())
	if name == "" {
		return Candidate{}, false
	}

	href, _ := link.Attr("href")
	url := absoluteURL("https://www.scotlandspeople.gov.uk", href)

	var birthYear int
	if ys := years(item.Text()); len(ys) > 0 {
		birthYear = ys[0]
	}

	return Candidate{Name: name, BirthYear: birthYear, URL: url}, true
}
