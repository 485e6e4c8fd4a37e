package brnum

import (
	"strconv"
	"strings"
	"time"
)

var defaultDateLayouts = []string{"02/01/2006", "02.01.2006", "02-01-2006", "2006-01-02", "02/01/06", "02.01.06"}

var strftimeTokens = strings.NewReplacer(
	"%d", "02",
	"%m", "01",
	"%Y", "2006",
	"%y", "06",
	"%b", "Jan",
	"%H", "15",
	"%M", "04",
	"%S", "05",
)

// StrftimeToLayout translates a strptime style format ("%d/%m/%Y") to a Go
// time layout. Strings without a "%" are returned unchanged.
func StrftimeToLayout(format string) string {
	if !strings.Contains(format, "%") {
		return format
	}
	return strftimeTokens.Replace(format)
}

// ParseDate parses a statement date. format may be empty, a Go layout or a
// strptime format; on failure the common Brazilian shapes are tried. Two
// digit years always land in 20xx.
func ParseDate(s, format string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	layouts := defaultDateLayouts
	if format != "" {
		layouts = append([]string{StrftimeToLayout(format)}, defaultDateLayouts...)
	}
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if strings.Contains(layout, "06") && !strings.Contains(layout, "2006") && t.Year() < 2000 {
			t = t.AddDate(100, 0, 0)
		}
		return Day(t), true
	}
	return time.Time{}, false
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

var monthAbbrev = map[string]time.Month{
	"JAN": time.January, "FEV": time.February, "MAR": time.March,
	"ABR": time.April, "MAI": time.May, "JUN": time.June,
	"JUL": time.July, "AGO": time.August, "SET": time.September,
	"OUT": time.October, "NOV": time.November, "DEZ": time.December,
}

// Month resolves a Portuguese month abbreviation ("fev") or a month number.
func Month(token string) (time.Month, bool) {
	token = Fold(strings.TrimSpace(token))
	if len(token) >= 3 {
		if m, ok := monthAbbrev[token[:3]]; ok {
			return m, true
		}
	}
	n, err := strconv.Atoi(token)
	if err != nil || n < 1 || n > 12 {
		return 0, false
	}
	return time.Month(n), true
}

// ParseDayMonth builds a date from a day, a month token and a year, rejecting
// impossible dates such as 31/02.
func ParseDayMonth(day, month string, year int) (time.Time, bool) {
	d, err := strconv.Atoi(strings.TrimSpace(day))
	if err != nil {
		return time.Time{}, false
	}
	m, ok := Month(month)
	if !ok || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, m, d, 0, 0, 0, 0, time.UTC)
	if t.Month() != m {
		return time.Time{}, false
	}
	return t, true
}
