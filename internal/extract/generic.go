package extract

import (
	"bytes"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

// htmlConfig parameterizes genericHTMLExtractor for one source. It stands
// in for the near-identical "try a few class-name patterns, fall back to
// any matching link" logic repeated across ancestry_extractor.py,
// billiongraves_extractor.py, myheritage_extractor.py, filae_extractor.py,
// irishgenealogy_extractor.py, digitalarkivet_extractor.py and
// antenati_extractor.py: each tries its own ordered list of CSS class
// patterns for the same three things (result item, name, place) before
// falling back to the first link in the item.
type htmlConfig struct {
	source            string
	baseURL           string
	itemSelectors     []string // tried in order, first non-empty match wins
	nameSelectors     []string // relative to an item, tried before the link text
	locationSelectors []string
	linkSelector      string // default "a[href]"
	maxResults        int    // default 20

	// resultsIndicatorPatterns are extra regexes checked by
	// HasResultsIndicator before the generic fallback, for the few
	// originals (antenati_extractor.py:136) that carried their own list
	// instead of relying on the base extractor's default.
	resultsIndicatorPatterns []string
}

func (c htmlConfig) link() string {
	if c.linkSelector != "" {
		return c.linkSelector
	}

	return "a[href]"
}

func (c htmlConfig) limit() int {
	if c.maxResults > 0 {
		return c.maxResults
	}

	return 20
}

type genericHTMLExtractor struct {
	cfg             htmlConfig
	extraIndicators []*regexp.Regexp
}

func newGenericHTMLExtractor(cfg htmlConfig) *genericHTMLExtractor {
	return &genericHTMLExtractor{cfg: cfg, extraIndicators: compileIndicators(cfg.resultsIndicatorPatterns)}
}

// HasResultsIndicator tries this source's own indicator patterns, then
// whether its own item selectors find anything (the selector-driven
// analogue of filae_extractor.py:110's result-container count), then the
// generic default every unoverridden Python original falls back to.
func (g *genericHTMLExtractor) HasResultsIndicator(content []byte) bool {
	text := string(content)
	if matchesAny(text, g.extraIndicators) {
		return true
	}

	if doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content)); err == nil {
		if g.firstMatchingSet(doc.Selection) != nil {
			return true
		}
	}

	return hasResultsIndicator(text)
}

func (g *genericHTMLExtractor) Extract(content []byte, query Query) ([]Candidate, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, wrapErr(g.cfg.source, "parse html", err)
	}

	items := g.firstMatchingSet(doc.Selection)
	if items == nil {
		return nil, nil
	}

	var out []Candidate

	items.EachWithBreak(func(i int, item *goquery.Selection) bool {
		if i >= g.cfg.limit() {
			return false
		}

		if c, ok := g.extractItem(item); ok {
			out = append(out, score(g.cfg.source, c, query))
		}

		return true
	})

	return out, nil
}

func (g *genericHTMLExtractor) firstMatchingSet(root *goquery.Selection) *goquery.Selection {
	for _, sel := range g.cfg.itemSelectors {
		found := root.Find(sel)
		if found.Length() > 0 {
			return found
		}
	}

	return nil
}

func (g *genericHTMLExtractor) extractItem(item *goquery.Selection) (Candidate, bool) {
	link := item.Find(g.cfg.link()).First()
	if link.Length() == 0 && goquery.NodeName(item) == "a" {
		link = item
	}

	name := firstMatchText(item, g.cfg.nameSelectors)
	if name == "" {
		name = cleanText(link.Text())
	}

	if name == "" {
		ls := lines(item.Text())
		if len(ls) > 0 {
			name = ls[0]
		}
	}

	if name == "" {
		return Candidate{}, false
	}

	href, _ := link.Attr("href")
	url := absoluteURL(g.cfg.baseURL, href)

	text := item.Text()

	var birthYear, deathYear int
	if b, d, ok := dateRange(text); ok {
		birthYear, deathYear = b, d
	} else if ys := years(text); len(ys) >= 2 {
		birthYear, deathYear = ys[0], ys[1]
	} else if len(ys) == 1 {
		birthYear = ys[0]
	}

	place := firstMatchText(item, g.cfg.locationSelectors)

	return Candidate{
		Name:       name,
		BirthYear:  birthYear,
		BirthPlace: place,
		DeathYear:  deathYear,
		DeathPlace: place,
		URL:        url,
	}, true
}

func firstMatchText(item *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		found := item.Find(sel).First()
		if found.Length() == 0 {
			continue
		}

		text := cleanText(found.Text())
		if text != "" {
			return text
		}
	}

	return ""
}

var billiongravesConfig = htmlConfig{
	source:  "billiongraves",
	baseURL: "https://billiongraves.com",
	itemSelectors: []string{
		`div[class*="result"], div[class*="record"], div[class*="grave-card"]`,
		`a[class*="result"], a[class*="record"], a[class*="grave"]`,
		`a[href*="/grave/"]`,
	},
	locationSelectors: []string{`[class*="cemetery"], [class*="location"]`},
}

var ancestryConfig = htmlConfig{
	source:  "ancestry",
	baseURL: "https://www.ancestry.com",
	itemSelectors: []string{
		`div[class*="recordCard"], div[class*="result"], div[class*="person"]`,
		`li[class*="result"], li[class*="record"]`,
		`tr[class*="result"], tr[class*="record"]`,
	},
	locationSelectors: []string{`[class*="place"], [class*="location"]`},
}

var myHeritageConfig = htmlConfig{
	source:  "myheritage",
	baseURL: "https://www.myheritage.com",
	itemSelectors: []string{
		`div[class*="result"], div[class*="item"], div[class*="person"], div[class*="record"]`,
		`li[class*="result"], li[class*="item"]`,
		`tr[class*="result"], tr[class*="record"]`,
	},
	locationSelectors: []string{`[class*="place"], [class*="location"]`},
}

var filaeConfig = htmlConfig{
	source:  "filae",
	baseURL: "https://www.filae.com",
	itemSelectors: []string{
		`div[class*="result"], div[class*="record"], div[class*="item"]`,
		`tr[class*="result"], tr[class*="record"]`,
		`li[class*="result"], li[class*="record"]`,
		`article[class*="result"], article[class*="record"]`,
	},
	nameSelectors:     []string{`[class*="name"], [class*="nom"], [class*="person"]`},
	locationSelectors: []string{`[class*="place"], [class*="lieu"], [class*="location"], [class*="ville"]`},
}

var archivesDepartementalesConfig = htmlConfig{
	source:  "archivesdepartementales",
	baseURL: "https://archives-en-ligne.fr",
	itemSelectors: []string{
		`.registre-list [class*="registre"], .registre-list li, .registre-list tr`,
		`div[class*="result"], div[class*="registre"]`,
	},
	nameSelectors:     []string{`[class*="titre"], [class*="commune"]`},
	locationSelectors: []string{`[class*="lieu"], [class*="commune"]`},
}

var irishGenealogyConfig = htmlConfig{
	source:  "irishgenealogy",
	baseURL: "https://www.irishgenealogy.ie",
	itemSelectors: []string{
		`table[class*="result"] tr, table[class*="record"] tr, table[class*="data"] tr`,
		`div[class*="result"], li[class*="result"]`,
	},
	locationSelectors: []string{`[class*="place"], [class*="county"]`},
}

var digitalarkivetConfig = htmlConfig{
	source:  "digitalarkivet",
	baseURL: "https://www.digitalarkivet.no",
	itemSelectors: []string{
		`tr[class*="result"], tr[class*="record"], tr[class*="hit"]`,
		`div[class*="result"], div[class*="record"], div[class*="hit"], div[class*="person"]`,
		`li[class*="result"], li[class*="record"], li[class*="hit"]`,
		`a[href*="/person/"], a[href*="/kilde/"], a[href*="/source/"]`,
	},
}

var antenatiConfig = htmlConfig{
	source:        "antenati",
	baseURL:       "https://antenati.cultura.gov.it",
	itemSelectors: []string{"div.search-item"},
	nameSelectors: []string{"h3 a"},
	resultsIndicatorPatterns: []string{
		`\d+\s+risultati`,
		`\d+\s+records?`,
		`registry`,
		`antenati\.cultura\.gov\.it`,
	},
}
