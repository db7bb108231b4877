package sec13f

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	yearRe    = regexp.MustCompile(`20\d{2}`)
	secDateRe = regexp.MustCompile(`(\d{1,2})-([A-Za-z]{3})-(\d{4})`)

	thousand = decimal.NewFromInt(1000)
	one      = decimal.NewFromInt(1)

	months = map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	}
)

// ValueMultiplier returns the factor converting reported VALUE into dollars.
// Data sets up to and including cutoffYear report thousands; later ones, and
// labels without a year, report dollars.
func ValueMultiplier(label string, cutoffYear int) decimal.Decimal {
	m := yearRe.FindString(label)
	if m == "" {
		return one
	}
	year, err := strconv.Atoi(m)
	if err != nil || year > cutoffYear {
		return one
	}
	return thousand
}

// ParseDate reads the DD-MON-YYYY dates used in the data sets. Unreadable
// input falls back to today's UTC date; an unknown month reads as January.
func ParseDate(s string, now time.Time) time.Time {
	m := secDateRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		y, mo, d := now.UTC().Date()
		return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])
	month, ok := months[strings.ToLower(m[2])]
	if !ok {
		month = time.January
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
