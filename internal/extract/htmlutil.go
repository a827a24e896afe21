package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

var yearPattern = regexp.MustCompile(`\b(1[5-9]\d{2}|20[0-2]\d)\b`)

// years returns every 4-digit year found in text, in order of appearance.
func years(text string) []int {
	matches := yearPattern.FindAllString(text, -1)

	out := make([]int, 0, len(matches))
	for _, m := range matches {
		y, err := strconv.Atoi(m)
		if err != nil {
			continue
		}

		out = append(out, y)
	}

	return out
}

var dateRangePattern = regexp.MustCompile(`(\d{1,2}\s+\w+\s+)?(\d{4})\s*[\x{2013}-]\s*(\d{1,2}\s+\w+\s+)?(\d{4})`)

// dateRange looks for a "birth - death" style range (e.g. "1879 - 1968" or
// "15 Aug 1871 - 25 Oct 1899") and returns the two years, if found.
func dateRange(text string) (birth, death int, ok bool) {
	m := dateRangePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, 0, false
	}

	b, err1 := strconv.Atoi(m[2])
	d, err2 := strconv.Atoi(m[4])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}

	return b, d, true
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// cleanText collapses runs of whitespace and trims the result.
func cleanText(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// lines splits text on newlines into trimmed, non-empty lines.
func lines(text string) []string {
	raw := strings.Split(text, "\n")

	out := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimSpace(l)
		if l != "" {
			out = append(out, l)
		}
	}

	return out
}

// absoluteURL joins a (possibly relative) href against a source's base URL.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}

	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}

	refURL, err := url.Parse(href)
	if err != nil {
		return href
	}

	return baseURL.ResolveReference(refURL).String()
}

var defaultResultsIndicators = []string{
	`\d+\s+results?`,
	`\d+\s+r[ée]sultats?`,
	`\d+\s+risultati`,
	"search results",
	"showing results",
}

var compiledDefaultIndicators = compileIndicators(defaultResultsIndicators)

func compileIndicators(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(`(?i)`+p))
	}

	return out
}

// hasResultsIndicator is the generic "page claims to have results" check
// used by ExtractWithFallback. Source-specific extractors check their own
// phrases with matchesAny over patterns built by compileIndicators.
func hasResultsIndicator(content string) bool {
	return matchesAny(content, compiledDefaultIndicators)
}

func matchesAny(content string, patterns []*regexp.Regexp) bool {
	for _, re := range patterns {
		if re.MatchString(content) {
			return true
		}
	}

	return false
}

// containsAnyFold reports whether content contains any of substrs, ignoring case.
func containsAnyFold(content string, substrs ...string) bool {
	lower := strings.ToLower(content)

	for _, s := range substrs {
		if strings.Contains(lower, strings.ToLower(s)) {
			return true
		}
	}

	return false
}
