package task

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateKey is the canonical integer encoding of a calendar date used for
// ordering comparisons: year*10000 + month*100 + day.
type DateKey int

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})(?:[T ].*)?$`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`)
)

// deadlineParsers are tried in order; the first accepting parser wins.
var deadlineParsers = []func(string) (DateKey, bool){
	parseISODate,
	parseSlashDate,
	parseAnyDate,
}

// DeadlineKey turns an arbitrary deadline string into a comparable key.
// Recognized forms: YYYY-MM-DD with an optional (ignored) time part,
// DD/MM/YYYY, and a last-resort generic parse. Acceptance is syntactic only:
// month must be in [1,12] and day in [1,31], no calendar validity check.
// Everything else, including empty input, reports ok == false.
func DeadlineKey(deadline string) (DateKey, bool) {
	s := strings.TrimSpace(deadline)
	if s == "" {
		return 0, false
	}
	for _, parse := range deadlineParsers {
		if key, ok := parse(s); ok {
			return key, true
		}
	}
	return 0, false
}

func makeKey(year, month, day int) (DateKey, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return 0, false
	}
	return DateKey(year*10000 + month*100 + day), true
}

func parseISODate(s string) (DateKey, bool) {
	m := isoDateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	return makeKey(year, month, day)
}

func parseSlashDate(s string) (DateKey, bool) {
	m := slashDateRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	return makeKey(year, month, day)
}

// genericLayouts cover the stragglers seen in free-form deadline fields.
var genericLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"Jan 2, 2006",
	"2 Jan 2006",
	"January 2, 2006",
}

func parseAnyDate(s string) (DateKey, bool) {
	for _, layout := range genericLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return makeKey(ts.Year(), int(ts.Month()), ts.Day())
		}
	}
	return 0, false
}
