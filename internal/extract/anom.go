package extract

import (
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// anomExtractor parses ANOM's bagne (penal colony) search results,
// grounded on anom_extractor.py's _extract_bagne_records path. ANOM also
// serves a separate military-matricules database under a different host;
// that path is not implemented here since the bagne database is what
// sources.yaml's url_template targets.
type anomExtractor struct{}

var anomArkPattern = regexp.MustCompile(`ark:/61561/([A-Za-z0-9]+)`)
var anomDeathPattern = regexp.MustCompile(`D[ée]c[ée]d[ée]?\s+le\s+(\d{1,2}\s+\S+\s+(\d{4}))`)

var anomResultsIndicators = compileIndicators([]string{
	`\d+\s+r[ée]ponses?`,
	`\d+\s+r[ée]sultats?`,
	`ark:/61561/`,
	`type-notice`,
	`inventaires?`,
})

// HasResultsIndicator checks ANOM's own result-count, archival-reference
// and row-class markers, grounded on anom_extractor.py:305.
func (anomExtractor) HasResultsIndicator(content []byte) bool {
	return matchesAny(string(content), anomResultsIndicators)
}

func (anomExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, wrapErr("anom", "parse html", err)
	}

	rows := doc.Find(`tr[class*="type-notice"]`)

	var out []Candidate

	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if i >= 30 {
			return false
		}

		if c, ok := extractAnomBagneRow(row); ok {
			out = append(out, score("anom", c, query))
		}

		return true
	})

	return out, nil
}

func extractAnomBagneRow(row *goquery.Selection) (Candidate, bool) {
	name := cleanText(row.Find("span.unittitle").First().Text())
	if name == "" {
		return Candidate{}, false
	}

	var url string

	row.Find(`a[href*="/ark:/"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")

		m := anomArkPattern.FindStringSubmatch(href)
		if m != nil {
			url = "https://recherche-anom.culture.gouv.fr/ark:/61561/" + m[1]

			return false
		}

		return true
	})

	fields := anomFields(row)

	var deathYear int

	if obs, ok := fields["Observations complémentaires"]; ok {
		if m := anomDeathPattern.FindStringSubmatch(obs); m != nil {
			if y, err := strconv.Atoi(m[2]); err == nil {
				deathYear = y
			}
		}
	}

	territory := strings.TrimRight(fields["Territoire de détention"], ".")

	return Candidate{
		Name:       name,
		DeathYear:  deathYear,
		BirthPlace: territory,
		DeathPlace: territory,
		URL:        url,
	}, true
}

// anomFields reads each div.items block's "Label : value" pair, keyed by
// the label text, from arc_libelle_strong/arc_firstp markup.
func anomFields(row *goquery.Selection) map[string]string {
	fields := make(map[string]string)

	row.Find("div.items").Each(func(_ int, item *goquery.Selection) {
		label := item.Find("strong.arc_libelle_strong").First()
		if label.Length() == 0 {
			return
		}

		key := strings.TrimSpace(strings.TrimRight(cleanText(label.Text()), " :"))
		if key == "" {
			return
		}

		value := cleanText(item.Find("p.arc_firstp").First().Text())
		if value == "" {
			value = cleanText(item.Text())
			value = strings.TrimPrefix(value, cleanText(label.Text()))
			value = strings.TrimSpace(strings.TrimPrefix(value, ":"))
		}

		fields[key] = value
	})

	return fields
}
