package extract

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// findAGraveExtractor parses memorial-item cards, with a text-only fallback
// when no memorial-item div is found but the page still lists memorial
// links - grounded on find_a_grave_extractor.py's two-path extraction.
type findAGraveExtractor struct{}

var memorialIDPattern = regexp.MustCompile(`/memorial/(\d+)`)

var cemeteryLineKeywords = []string{"Cemetery", "Churchyard", "Memorial", "Gardens", "Burial"}
var cemeterySkipKeywords = []string{"Plot info:", "Memorial", "Flowers", "grave photo"}

var findAGraveResultsIndicators = compileIndicators([]string{
	`\d+\s+memorials?`,
	`\d+\s+results?`,
})

// HasResultsIndicator checks Find A Grave's own result-count and link
// markers, grounded on find_a_grave_extractor.py:307.
func (findAGraveExtractor) HasResultsIndicator(content []byte) bool {
	text := string(content)

	return matchesAny(text, findAGraveResultsIndicators) || containsAnyFold(text, "memorial/", "search results")
}

func (findAGraveExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, wrapErr("findagrave", "parse html", err)
	}

	items := doc.Find("div.memorial-item")
	if items.Length() > 0 {
		var out []Candidate

		items.EachWithBreak(func(i int, item *goquery.Selection) bool {
			if i >= 20 {
				return false
			}

			if c, ok := extractMemorial(item); ok {
				out = append(out, score("findagrave", c, query))
			}

			return true
		})

		return out, nil
	}

	// Fallback: scan raw text for memorial IDs when the card markup isn't
	// found at all (rendered partial content, or a layout change).
	text := string(content)
	ids := memorialIDPattern.FindAllStringSubmatch(text, -1)

	var out []Candidate

	seen := make(map[string]bool)

	for i, m := range ids {
		if i >= 20 {
			break
		}

		id := m[1]
		if seen[id] {
			continue
		}

		seen[id] = true

		if c, ok := extractMemorialFromText(text, id); ok {
			out = append(out, score("findagrave", c, query))
		}
	}

	return out, nil
}

func extractMemorial(item *goquery.Selection) (Candidate, bool) {
	link := item.Find(`a[href]`).FilterFunction(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		return memorialIDPattern.MatchString(href)
	}).First()

	if link.Length() == 0 {
		return Candidate{}, false
	}

	href, _ := link.Attr("href")
	url := absoluteURL("https://www.findagrave.com", href)

	name := cleanText(link.Find("i").Text())
	if name == "" {
		nameElem := item.Find("h2.name-grave, h3").First()
		name = cleanText(nameElem.Find("i").Text())
		if name == "" {
			name = cleanText(nameElem.Text())
		}
	}

	if name == "" {
		name = cleanText(link.Text())
	}

	if name == "" {
		return Candidate{}, false
	}

	text := item.Text()

	var birthYear, deathYear int
	if datesText := cleanText(item.Find("b.birthDeathDates").Text()); datesText != "" {
		birthYear, deathYear, _ = dateRange(datesText)
	}

	if birthYear == 0 {
		if b, d, ok := dateRange(text); ok {
			birthYear, deathYear = b, d
		} else if ys := years(text); len(ys) >= 2 {
			birthYear, deathYear = ys[0], ys[1]
		} else if len(ys) == 1 {
			birthYear = ys[0]
		}
	}

	_, location := cemeteryAndLocation(lines(text))

	return Candidate{
		Name:       name,
		BirthYear:  birthYear,
		DeathYear:  deathYear,
		BirthPlace: location,
		DeathPlace: location,
		URL:        url,
	}, true
}

// cemeteryAndLocation scans text lines for the first cemetery-like line
// and collects the following lines as location, stopping at a known noise
// marker or a bare digit line (plot numbers).
func cemeteryAndLocation(ls []string) (cemetery, location string) {
	for i, line := range ls {
		if !containsAnyFold(line, cemeteryLineKeywords...) {
			continue
		}

		cemetery = line

		var parts []string

		for j := i + 1; j < len(ls) && j < i+5; j++ {
			next := ls[j]
			if containsAnyFold(next, cemeterySkipKeywords...) {
				break
			}

			if next != "" && !isAllDigits(next) {
				parts = append(parts, strings.TrimRight(next, ","))
			}
		}

		location = strings.TrimSpace(strings.Join(parts, ", "))

		return cemetery, location
	}

	return "", ""
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

func extractMemorialFromText(content, id string) (Candidate, bool) {
	url := "https://www.findagrave.com/memorial/" + id

	nameRe := regexp.MustCompile(fmt.Sprintf(`([A-Z][a-zA-Z\s]+)\s*/memorial/%s`, regexp.QuoteMeta(id)))

	m := nameRe.FindStringSubmatch(content)
	if m == nil {
		return Candidate{}, false
	}

	name := cleanText(m[1])
	if name == "" {
		return Candidate{}, false
	}

	var birthYear, deathYear int

	if pos := strings.Index(content, "/memorial/"+id); pos >= 0 {
		start := pos - 200
		if start < 0 {
			start = 0
		}

		end := pos + 200
		if end > len(content) {
			end = len(content)
		}

		ys := years(content[start:end])
		if len(ys) > 0 {
			birthYear = ys[0]
		}

		if len(ys) > 1 {
			deathYear = ys[1]
		}
	}

	return Candidate{Name: name, BirthYear: birthYear, DeathYear: deathYear, URL: url}, true
}
