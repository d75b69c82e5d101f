package amendment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// datePattern matches the date shapes that appear in contract text. It is
// embedded into the larger extractor patterns.
const datePattern = `(?:\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|\d{4}[/-]\d{1,2}[/-]\d{1,2}|(?:Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|June?|July?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?)\.?\s+\d{1,2},?\s+\d{4})`

var (
	reYMD  = regexp.MustCompile(`^(\d{4})[/-](\d{1,2})[/-](\d{1,2})$`)
	reMDY  = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{4})$`)
	reMDYY = regexp.MustCompile(`^(\d{1,2})[/-](\d{1,2})[/-](\d{2})$`)
	reSept = regexp.MustCompile(`\bSept\b`)

	monthLayouts = []string{
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
		"Jan. 2, 2006",
	}
)

// NormalizeDate converts MM/DD/YYYY, YYYY/MM/DD and MM/DD/YY (years
// 2000-2099) with "/" or "-" separators, plus spelled-out month dates, to
// YYYY-MM-DD. Anything it cannot parse is returned unchanged.
func NormalizeDate(s string) string {
	v := strings.TrimSpace(s)
	if v == "" {
		return s
	}

	if m := reYMD.FindStringSubmatch(v); m != nil {
		return formatDate(s, m[1], m[2], m[3])
	}
	if m := reMDY.FindStringSubmatch(v); m != nil {
		return formatDate(s, m[3], m[1], m[2])
	}
	if m := reMDYY.FindStringSubmatch(v); m != nil {
		return formatDate(s, "20"+m[3], m[1], m[2])
	}

	// "Sept" is common in contracts but not a Go month abbreviation.
	named := reSept.ReplaceAllString(v, "Sep")
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, named); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

func formatDate(orig, year, month, day string) string {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 {
		return orig
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date rolls Feb 30 into March; reject instead.
	if t.Day() != d || int(t.Month()) != m {
		return orig
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d)
}
