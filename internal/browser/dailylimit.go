package browser

import "strings"

// dailyLimitIndicators are case-insensitive phrases a source's own quota
// page uses to tell a human they've been rate-limited for the day.
var dailyLimitIndicators = []string{
	"daily limit",
	"reached your limit",
	"limit reached",
	"search limit",
	"too many searches",
	"come back tomorrow",
}

// detectDailyLimit scans rendered page content for any known daily-limit
// indicator phrase.
func detectDailyLimit(content string) bool {
	lower := strings.ToLower(content)

	for _, indicator := range dailyLimitIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}

	return false
}
