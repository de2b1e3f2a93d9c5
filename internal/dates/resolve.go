package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date token cannot be resolved to a
// calendar date whose weekday matches the stated abbreviation. Callers
// are expected to skip the offending row, not abort the import.
var ErrInvalidDate = errors.New("unable to resolve date")

// Token grammar: optional month name, day of month, optional comma and
// year (the year is never trusted), then the weekday abbreviation in
// parentheses. Example tokens: "January 12 (T)", "March 1 (M) - 6 (S)".
var dateTokenRE = regexp.MustCompile(`([A-Za-z]{3,20})?\s*(\d{1,2})\s*,*\s*(\d{4})?\s*\(([A-Za-z]{1,2})\)`)

// A resolved range wider than this means the weekday search picked a
// wrong neighborhood candidate for one of the endpoints.
const maxRangeDelta = 12 * 7 * 24 * time.Hour

// ResolveDates parses every date token in s and returns the resolved
// dates in order. A token without a month inherits the month of the
// previous token in the same string, which is how the source tables
// write ranges ("March 1 (M) - 6 (S)").
//
// The candidate date is first built in ref's year; if its weekday does
// not match the abbreviation, matchWeekday searches a bounded
// neighborhood. "S" is retried as Sunday when the Saturday search
// fails, because the source uses it for both days.
func ResolveDates(s string, ref time.Time) ([]time.Time, error) {
	var out []time.Time

	for _, m := range dateTokenRE.FindAllStringSubmatch(s, -1) {
		monthName, dayStr, wdayCode := m[1], m[2], m[4]

		iso, ok := CodeToISO(wdayCode)
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday code %q in %q", ErrInvalidDate, wdayCode, s)
		}

		var month time.Month
		if monthName == "" {
			if len(out) == 0 {
				return nil, fmt.Errorf("%w: missing month in %q", ErrInvalidDate, s)
			}
			month = out[len(out)-1].Month()
		} else {
			month, ok = parseMonth(monthName)
			if !ok {
				return nil, fmt.Errorf("%w: unknown month %q in %q", ErrInvalidDate, monthName, s)
			}
		}

		day, err := strconv.Atoi(dayStr)
		if err != nil {
			return nil, fmt.Errorf("%w: bad day %q in %q", ErrInvalidDate, dayStr, s)
		}

		cand, ok := makeDate(ref.Year(), month, day)
		if !ok {
			return nil, fmt.Errorf("%w: no such date %s %d in %q", ErrInvalidDate, month, day, s)
		}

		resolved, err := matchWeekday(cand, iso, ref)
		if err != nil && wdayCode == "S" {
			// "S" is used for both Saturday and Sunday.
			resolved, err = matchWeekday(cand, 7, ref)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDate, s)
		}

		if len(out) > 0 {
			if d := out[len(out)-1].Sub(resolved); d <= -maxRangeDelta || d >= maxRangeDelta {
				return nil, fmt.Errorf("%w: range endpoints too far apart in %q", ErrInvalidDate, s)
			}
		}
		out = append(out, resolved)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no date tokens in %q", ErrInvalidDate, s)
	}
	return out, nil
}

// matchWeekday returns d if its weekday already matches iso, else tries
// the same day-of-month in the previous year, the next year, the month
// before ref's month and the month after, stopping at the first
// candidate whose weekday matches. Month shifts wrap across year
// boundaries. Candidates that name a nonexistent date (February 30)
// are skipped.
func matchWeekday(d time.Time, iso int, ref time.Time) (time.Time, error) {
	if ISOWeekday(d) == iso {
		return d, nil
	}

	day, month := d.Day(), d.Month()

	type ym struct {
		y int
		m time.Month
	}
	cands := []ym{
		{ref.Year() - 1, month},
		{ref.Year() + 1, month},
	}
	if ref.Month() == time.January {
		cands = append(cands, ym{ref.Year() - 1, time.December})
	} else {
		cands = append(cands, ym{ref.Year(), ref.Month() - 1})
	}
	if ref.Month() == time.December {
		cands = append(cands, ym{ref.Year() + 1, time.January})
	} else {
		cands = append(cands, ym{ref.Year(), ref.Month() + 1})
	}

	for _, c := range cands {
		cd, ok := makeDate(c.y, c.m, day)
		if !ok {
			continue
		}
		if ISOWeekday(cd) == iso {
			return cd, nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// makeDate builds a UTC-midnight date and reports whether the
// components name a real calendar date (time.Date would silently
// normalize an overflow).
func makeDate(year int, month time.Month, day int) (time.Time, bool) {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != month || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}

func parseMonth(name string) (time.Month, bool) {
	for m := time.January; m <= time.December; m++ {
		full := m.String()
		if strings.EqualFold(name, full) || strings.EqualFold(name, full[:3]) {
			return m, true
		}
	}
	return 0, false
}
