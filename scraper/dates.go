// backend/scraper/dates.go
package scraper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Layouts tried in order by ParseDate.
var dateLayouts = []string{
	"January 2, 2006",
	"Jan 2, 2006",
	"1/2/2006",
	"2006-01-02",
	"1/2/06",
	"January 2006",
	"Jan 2006",
}

var (
	yearRegex        = regexp.MustCompile(`\b(20\d{2})\b`)
	monthAbbrevRegex = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\.?(\s)`)
	monthTokenRegex  = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
)

var monthPrefixes = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var noDateMarkers = map[string]bool{"": true, "n/a": true, "none": true, "-": true, "tbd": true}

// ParseDate parses the date formats seen in wage feeds. When no layout matches it falls back to a
// "20xx" year plus an optional month name (day 1), then to January 1 of the year.
// Returns nil for empty, "n/a", "none", "-", "tbd", or text without a usable year.
func ParseDate(text string) *time.Time {
	s := cleanCell(text)
	if noDateMarkers[strings.ToLower(s)] {
		return nil
	}

	normalized := normalizeMonthAbbrev(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, normalized); err == nil {
			t = t.UTC()
			return &t
		}
	}

	yearMatch := yearRegex.FindStringSubmatch(s)
	if yearMatch == nil {
		return nil
	}
	year, err := strconv.Atoi(yearMatch[1])
	if err != nil {
		return nil
	}
	month := time.January
	if m := monthTokenRegex.FindString(s); m != "" {
		month = monthPrefixes[strings.ToLower(m)[:3]]
	}
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return &t
}

// normalizeMonthAbbrev rewrites "Sept." and "Jan." to the three-letter forms time.Parse accepts.
func normalizeMonthAbbrev(s string) string {
	return monthAbbrevRegex.ReplaceAllStringFunc(s, func(m string) string {
		sub := monthAbbrevRegex.FindStringSubmatch(m)
		return sub[1][:3] + sub[2]
	})
}

// formatDate renders an optional date as YYYY-MM-DD.
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}
