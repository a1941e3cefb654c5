// Package datecode implements the fixed textual date-time encoding used for
// both user input and storage: "DDMMYY HHMM", naive local time, year 2000+YY.
package datecode

import (
	"strings"
	"time"
)

const (
	// Layout is the canonical storage encoding.
	Layout = "020106 1504"
	// DisplayLayout is the human-facing rendering.
	DisplayLayout = "02.01.2006 15:04"
	// DateLayout is the date half of the canonical encoding, used for
	// same-day prefix queries.
	DateLayout = "020106"
)

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Parse decodes "DDMMYY HHMM" into a local time. It accepts exactly two
// whitespace-separated numeric tokens of lengths 6 and 4 and rejects
// calendar-invalid combinations (day 31 in a 30-day month, hour 24, ...).
func Parse(text string) (time.Time, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) != 2 {
		return time.Time{}, false
	}
	datePart, timePart := fields[0], fields[1]
	if len(datePart) != 6 || len(timePart) != 4 {
		return time.Time{}, false
	}
	if !allDigits(datePart) || !allDigits(timePart) {
		return time.Time{}, false
	}

	day := int(datePart[0]-'0')*10 + int(datePart[1]-'0')
	month := int(datePart[2]-'0')*10 + int(datePart[3]-'0')
	year := 2000 + int(datePart[4]-'0')*10 + int(datePart[5]-'0')
	hour := int(timePart[0]-'0')*10 + int(timePart[1]-'0')
	minute := int(timePart[2]-'0')*10 + int(timePart[3]-'0')

	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 {
		return time.Time{}, false
	}

	dt := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
	// time.Date normalizes out-of-range components (Apr 31 -> May 1),
	// so a round-trip mismatch means the calendar date did not exist.
	if dt.Day() != day || dt.Month() != time.Month(month) || dt.Year() != year {
		return time.Time{}, false
	}
	return dt, true
}

// Format encodes a time into the canonical "DDMMYY HHMM" form.
func Format(t time.Time) string {
	return t.Format(Layout)
}

// Display re-parses a stored canonical value and renders "DD.MM.YYYY HH:MM".
// Storage is expected to always hold valid encodings; if re-parsing fails the
// raw value is returned unchanged.
func Display(stored string) string {
	t, ok := Parse(stored)
	if !ok {
		return stored
	}
	return t.Format(DisplayLayout)
}

// DisplayTime renders only the clock part of a stored canonical value,
// used by the today view. Falls back to the raw value on bad input.
func DisplayTime(stored string) string {
	t, ok := Parse(stored)
	if !ok {
		return stored
	}
	return t.Format("15:04")
}

// SortKey rearranges a canonical value into "YYMMDDHHMM", whose lexicographic
// order is chronological. The raw encoding does not sort chronologically
// because the day precedes the year. Invalid input sorts as itself.
func SortKey(stored string) string {
	if len(stored) != 11 || stored[6] != ' ' {
		return stored
	}
	return stored[4:6] + stored[2:4] + stored[0:2] + stored[7:]
}
