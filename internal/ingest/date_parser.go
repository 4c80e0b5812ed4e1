package ingest

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 January 2006",
	"2006-01-02 15:04:05",
}

var monthNameRe = regexp.MustCompile(`(?i)(january|february|march|april|may|june|july|august|september|october|november|december)\.?\s+(\d{1,2})(?:st|nd|rd|th)?,?\s+(\d{4})`)

var months = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June,
	"july": time.July, "august": time.August, "september": time.September,
	"october": time.October, "november": time.November, "december": time.December,
}

// parseDateRobust tries the layout list first, then a loose month-name
// scan. Deadlines without a time component resolve to end of day UTC so a
// same-day deadline still counts as open.
func parseDateRobust(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return endOfDayIfMidnight(t), nil
		}
	}

	if m := monthNameRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		month := months[strings.ToLower(m[1])]
		if day >= 1 && day <= 31 {
			return time.Date(year, month, day, 23, 59, 59, 0, time.UTC), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized date format: %q", text)
}

// endOfDayIfMidnight pushes bare dates to 23:59:59 so deadline comparisons
// are inclusive of the final day.
func endOfDayIfMidnight(t time.Time) time.Time {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
	}
	return t
}
