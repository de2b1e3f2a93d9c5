package dates

import (
	"errors"
	"fmt"
	"time"

	applog "ttcal/internal/log"
)

// ErrMissingMilestone means a required semester boundary had neither a
// configured value nor a matching event in the table.
var ErrMissingMilestone = errors.New("missing semester milestone")

// ErrSanity means a resolved boundary date failed its plausibility
// check. This usually indicates a stale cache or the wrong semester in
// configuration, so it is fatal rather than retried.
var ErrSanity = errors.New("implausible boundary date")

// Span is an inclusive date interval.
type Span struct {
	Start time.Time
	End   time.Time
}

// Calendar holds the semester's exception data derived from the events
// table (or explicit configuration): holiday dates, day-override dates
// mapped to the RFC code of the weekday whose timetable applies, the
// first and last working days, and the mid-semester break if known.
// It is built once per run and read-only afterwards.
type Calendar struct {
	Holidays     map[time.Time]bool
	DayOverrides map[time.Time]string
	FirstWorkday time.Time
	LastWorkday  time.Time
	Midsem       *Span
}

// Overrides carries explicit configuration values. Any non-zero field
// short-circuits the corresponding table derivation.
type Overrides struct {
	ClassworkStart time.Time
	ClassworkEnd   time.Time
	Midsem         *Span
	Holidays       []time.Time
	DayOverrides   map[time.Time]string
	Semester       int // 0 derives the semester from ref
}

// Build derives the exception calendar. ref is the reference "today";
// it is an explicit parameter so every derivation and sanity check is a
// pure function of it.
func Build(table Table, ov Overrides, ref time.Time) (*Calendar, error) {
	today := DateOf(ref)

	sem := ov.Semester
	if sem == 0 {
		sem = Semester(ref)
	}

	first, err := firstWorkday(table, ov, sem, today)
	if err != nil {
		return nil, err
	}
	last, err := lastWorkday(table, ov, sem, today)
	if err != nil {
		return nil, err
	}
	if first.After(last) {
		return nil, fmt.Errorf("%w: first workday %s after last workday %s",
			ErrSanity, first.Format(time.DateOnly), last.Format(time.DateOnly))
	}

	midsem, err := midsemRange(table, ov, today)
	if err != nil {
		return nil, err
	}

	holidays := make(map[time.Time]bool)
	if len(ov.Holidays) > 0 {
		for _, d := range ov.Holidays {
			holidays[DateOf(d)] = true
		}
	} else {
		for _, d := range table.Holidays() {
			holidays[d] = true
		}
	}

	overrides := ov.DayOverrides
	if len(overrides) == 0 {
		overrides = table.DayOverrides()
	}
	normalized := make(map[time.Time]string, len(overrides))
	for d, code := range overrides {
		if !ValidRFCCode(code) {
			return nil, fmt.Errorf("invalid weekday code %q for day override on %s",
				code, d.Format(time.DateOnly))
		}
		normalized[DateOf(d)] = code
	}

	return &Calendar{
		Holidays:     holidays,
		DayOverrides: normalized,
		FirstWorkday: first,
		LastWorkday:  last,
		Midsem:       midsem,
	}, nil
}

func firstWorkday(table Table, ov Overrides, sem int, today time.Time) (time.Time, error) {
	var first time.Time
	switch {
	case !ov.ClassworkStart.IsZero():
		first = DateOf(ov.ClassworkStart)
	default:
		if dd, ok := table.FindMilestone(MilestoneClassworkBegins); ok {
			first = dd[0]
		} else {
			first = SemesterStart(sem, today)
			applog.Info("classwork start not found, using semester default",
				"date", first.Format(time.DateOnly))
		}
	}

	if d := first.Sub(today); d > 180*24*time.Hour || d < -180*24*time.Hour {
		return time.Time{}, fmt.Errorf("%w: classwork start %s is more than 180 days from %s",
			ErrSanity, first.Format(time.DateOnly), today.Format(time.DateOnly))
	}
	return first, nil
}

func lastWorkday(table Table, ov Overrides, sem int, today time.Time) (time.Time, error) {
	var last time.Time
	switch {
	case !ov.ClassworkEnd.IsZero():
		last = DateOf(ov.ClassworkEnd)
	default:
		if dd, ok := table.FindMilestone(MilestoneClassworkEnds); ok {
			last = dd[0]
		} else {
			last = SemesterEnd(sem, today)
			applog.Info("classwork end not found, using semester default",
				"date", last.Format(time.DateOnly))
		}
	}

	if last.Before(today) {
		return time.Time{}, fmt.Errorf("%w: classwork end %s is in the past",
			ErrSanity, last.Format(time.DateOnly))
	}
	return last, nil
}

func midsemRange(table Table, ov Overrides, today time.Time) (*Span, error) {
	var midsem *Span
	switch {
	case ov.Midsem != nil:
		midsem = &Span{Start: DateOf(ov.Midsem.Start), End: DateOf(ov.Midsem.End)}
	default:
		dd, ok := table.FindMilestone(MilestoneMidsem)
		if !ok {
			return nil, nil
		}
		if len(dd) < 2 {
			return nil, fmt.Errorf("%w: midsem range needs start and end", ErrMissingMilestone)
		}
		midsem = &Span{Start: dd[0], End: dd[1]}
	}

	if midsem.End.Before(midsem.Start) {
		return nil, fmt.Errorf("%w: midsem end %s before start %s", ErrSanity,
			midsem.End.Format(time.DateOnly), midsem.Start.Format(time.DateOnly))
	}
	if midsem.Start.Before(today) {
		return nil, fmt.Errorf("%w: midsem start %s is in the past",
			ErrSanity, midsem.Start.Format(time.DateOnly))
	}
	return midsem, nil
}

// Semester returns 2 during January through May, else 1.
func Semester(ref time.Time) int {
	if m := ref.Month(); m >= time.January && m <= time.May {
		return 2
	}
	return 1
}

// SemesterStart is the date-only fallback for the first working day:
// the first Monday of August for the first semester, the Monday of the
// second week of January for the second.
func SemesterStart(sem int, ref time.Time) time.Time {
	if sem == 1 {
		return nextMonday(time.Date(ref.Year(), time.August, 1, 0, 0, 0, 0, time.UTC))
	}
	return nextMonday(time.Date(ref.Year(), time.January, 8, 0, 0, 0, 0, time.UTC))
}

// SemesterEnd is the date-only fallback for the last working day.
func SemesterEnd(sem int, ref time.Time) time.Time {
	if sem == 1 {
		return time.Date(ref.Year(), time.November, 29, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(ref.Year(), time.April, 29, 0, 0, 0, 0, time.UTC)
}

func nextMonday(t time.Time) time.Time {
	return t.AddDate(0, 0, (8-ISOWeekday(t))%7)
}
