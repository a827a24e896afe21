package extract

import (
	"bytes"

	"github.com/PuerkitoBio/goquery"
)

// geneanetExtractor reads .ligne-resultat result anchors plus their
// matching #drop-tooltip-* detail panel, grounded on
// geneanet_extractor.py. Geneanet's site already knows gender from the
// father/mother CSS icon classes, so no name-based gender heuristic is
// needed here (unlike familysearch).
type geneanetExtractor struct{}

var geneanetResultsIndicators = compileIndicators([]string{
	`\d+\s+r[ée]sultats?`,
	`\d+\s+results?`,
})

// HasResultsIndicator checks Geneanet's own result-count and individual-
// link markers, grounded on geneanet_extractor.py:204.
func (geneanetExtractor) HasResultsIndicator(content []byte) bool {
	text := string(content)

	return matchesAny(text, geneanetResultsIndicators) || containsAnyFold(text, "/individu/", "search results")
}

func (geneanetExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, wrapErr("geneanet", "parse html", err)
	}

	items := doc.Find("a.ligne-resultat")

	var out []Candidate

	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= 20 {
			return false
		}

		if c, ok := extractIndividu(doc, item); ok {
			out = append(out, score("geneanet", c, query))
		}

		return true
	})

	return out, nil
}

func extractIndividu(doc *goquery.Document, item *goquery.Selection) (Candidate, bool) {
	url, _ := item.Attr("href")
	if url == "" {
		return Candidate{}, false
	}

	nameElem := item.Find(`p[class*="text-large"]`).First()

	name := cleanText(nameElem.Text())
	if name == "" {
		return Candidate{}, false
	}

	var birthYear, deathYear int

	periode := item.Find("div.content-periode")
	periode.Find("span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		label := cleanText(span.Text())

		var year *int

		switch label {
		case "Birth":
			year = &birthYear
		case "Death":
			year = &deathYear
		default:
			return true
		}

		valueSpan := span.Parent().Find(`span[class*="text-large"]`).First()
		if ys := years(valueSpan.Text()); len(ys) > 0 {
			*year = ys[0]
		}

		return true
	})

	place := cleanText(item.Find("div.content-lieu span.title-lieu").First().Text())

	father, mother := "", ""

	if tooltipID, ok := nameElem.Attr("data-dropdown-id"); ok && tooltipID != "" {
		tooltip := doc.Find("#" + tooltipID).First()
		father = cleanText(tooltip.Find(`p[class*="icon-search-homme"]`).First().Text())
		mother = cleanText(tooltip.Find(`p[class*="icon-search-femme"]`).First().Text())
	}

	return Candidate{
		Name:       name,
		BirthYear:  birthYear,
		BirthPlace: place,
		DeathYear:  deathYear,
		DeathPlace: place,
		URL:        url,
		Father:     father,
		Mother:     mother,
		HasParents: father != "" || mother != "",
	}, true
}
