package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"taskdeck/internal/model"
)

// Date inputs the normalizer accepts, tried in priority order. Everything
// canonicalizes to YYYY-MM-DD.
//
//	2025-06-01      ISO
//	today tomorrow  keywords (also yesterday)
//	eow eom         end of week (next Sunday) / end of month
//	+7 -3           signed day offsets from today
//	1d 2w 3m 1y     unit-suffixed offsets from today
//	0615 20250615   compact mmdd / yyyymmdd
//	15.06.2025 ...  locale formats as a last resort
const acceptedDateFormats = "yyyy-mm-dd, today, tomorrow, eow, eom, +N/-N, Nd/Nw/Nm/Ny, mmdd, yyyymmdd"

var (
	reSignedOffset = regexp.MustCompile(`^[+-]\d{1,4}$`)
	reUnitOffset   = regexp.MustCompile(`^(\d{1,3})([dwmy])$`)
	reCompactMMDD  = regexp.MustCompile(`^\d{4}$`)
	reCompactFull  = regexp.MustCompile(`^\d{8}$`)
)

var localeDateFormats = []string{
	"02.01.2006",
	"01/02/2006",
	"2.1.2006",
	"Jan 2 2006",
	"2 Jan 2006",
}

// Midnight strips the time-of-day component; all date comparisons in the
// query layer are date-only.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfWeek is the next Sunday on or after t (Monday-start week).
func EndOfWeek(t time.Time) time.Time {
	t = Midnight(t)
	days := (7 - int(t.Weekday())) % 7
	return t.AddDate(0, 0, days)
}

// EndOfMonth is the last day of t's month.
func EndOfMonth(t time.Time) time.Time {
	t = Midnight(t)
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

// NormalizeDate canonicalizes the accepted date spellings to YYYY-MM-DD.
// Already-ISO input parses on the first attempt, which makes the whole
// normalizer idempotent. Unrecognized input names the accepted formats.
func NormalizeDate(raw string, now time.Time) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", nil
	}
	today := Midnight(now)

	if t, err := time.ParseInLocation(model.DateOnly, s, now.Location()); err == nil {
		return t.Format(model.DateOnly), nil
	}

	switch s {
	case "today":
		return today.Format(model.DateOnly), nil
	case "tomorrow":
		return today.AddDate(0, 0, 1).Format(model.DateOnly), nil
	case "yesterday":
		return today.AddDate(0, 0, -1).Format(model.DateOnly), nil
	case "eow":
		return EndOfWeek(today).Format(model.DateOnly), nil
	case "eom":
		return EndOfMonth(today).Format(model.DateOnly), nil
	}

	if reSignedOffset.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return "", fmt.Errorf("bad day offset %q", raw)
		}
		return today.AddDate(0, 0, n).Format(model.DateOnly), nil
	}

	if m := reUnitOffset.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		switch m[2] {
		case "d":
			return today.AddDate(0, 0, n).Format(model.DateOnly), nil
		case "w":
			return today.AddDate(0, 0, 7*n).Format(model.DateOnly), nil
		case "m":
			return today.AddDate(0, n, 0).Format(model.DateOnly), nil
		case "y":
			return today.AddDate(n, 0, 0).Format(model.DateOnly), nil
		}
	}

	// mmdd in the current year. Uses strict time parsing so 1332 is rejected.
	if reCompactMMDD.MatchString(s) {
		if t, err := time.ParseInLocation("20060102", strconv.Itoa(today.Year())+s, now.Location()); err == nil {
			return t.Format(model.DateOnly), nil
		}
	}
	if reCompactFull.MatchString(s) {
		if t, err := time.ParseInLocation("20060102", s, now.Location()); err == nil {
			return t.Format(model.DateOnly), nil
		}
	}

	for _, layout := range localeDateFormats {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t.Format(model.DateOnly), nil
		}
	}

	return "", fmt.Errorf("unrecognized date %q (accepted: %s)", raw, acceptedDateFormats)
}

// ResolveDateToken resolves the filter-time date spellings used by the
// evaluator ("today", "eow", "+7", ISO, ...) against an explicit "now".
// Unlike NormalizeDate this is evaluated per query run, not at parse time.
func ResolveDateToken(token string, now time.Time) (time.Time, bool) {
	norm, err := NormalizeDate(token, now)
	if err != nil || norm == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(model.DateOnly, norm, now.Location())
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
