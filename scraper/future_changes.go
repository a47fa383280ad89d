// backend/scraper/future_changes.go
package scraper

import (
	"regexp"
	"time"
)

var (
	futureWageRegex = regexp.MustCompile(`\$\d+(\.\d{2})?`)

	// "effective January 1, 2026", "on 7/1/2025", "starting 2026"
	futureKeywordDateRegex = regexp.MustCompile(`(?i)\b(?:on|effective|starting)\s+(.+?\d{4})`)
	futureMonthDateRegex   = regexp.MustCompile(`(?i)\b((?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},\s*\d{4})`)
	futureSlashDateRegex   = regexp.MustCompile(`\b(\d{1,2}/\d{1,2}/\d{4})\b`)
)

// SplitFutureChanges pulls the next scheduled wage and its date out of a free-text cell such as
// "$19.18 effective July 1, 2026". Either part may be missing.
func SplitFutureChanges(text string) (value string, date *time.Time) {
	text = cleanCell(text)
	if text == "" {
		return "", nil
	}
	value = futureWageRegex.FindString(text)

	for _, re := range []*regexp.Regexp{futureKeywordDateRegex, futureMonthDateRegex, futureSlashDateRegex} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if d := ParseDate(m[1]); d != nil {
			return value, d
		}
	}
	return value, nil
}
