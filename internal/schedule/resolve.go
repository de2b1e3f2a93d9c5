// Package schedule anchors raw timetable meetings to their first
// concrete occurrence in the semester and resolves exam descriptors to
// timed windows.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"ttcal/internal/dates"
	applog "ttcal/internal/log"
	"ttcal/internal/timetable"
)

// IST is the campus offset: fixed UTC+5:30, no daylight-saving rules.
var IST = time.FixedZone("IST", 5*3600+30*60)

// The campus period grid starts at 07:00; each period lasts 50 minutes
// and starts on the hour.
const gridBaseHour = 7

const (
	midsemDuration = 90 * time.Minute
	compreDuration = 3 * time.Hour
)

var examSessions = map[string]int{
	"FN": 9,  // forenoon
	"AN": 14, // afternoon
}

// Meeting is a raw meeting anchored to one concrete date: the earliest
// date on or after the first working day whose weekday is in the
// meeting's weekday set.
type Meeting struct {
	Room     string
	Start    time.Time
	End      time.Time
	Weekdays []int // ascending ISO weekday numbers
}

// Section is a resolved section: its meetings plus the instructor list
// joined for event descriptions.
type Section struct {
	Code        string
	Instructors string
	Meetings    []Meeting
}

// Course is the fully resolved input of the event synthesizer.
type Course struct {
	Code     string
	Title    string
	Sections []Section
	Midsem   *Exam
	Compre   *Exam
}

// Exam is a non-recurring timed window (midsem or compre).
type Exam struct {
	Start time.Time
	End   time.Time
}

// ResolveMeeting anchors one raw meeting relative to firstWorkday. The
// anchor is never the wall-clock "today": re-running mid-semester must
// produce the same dates as the first run.
func ResolveMeeting(m timetable.RawMeeting, firstWorkday time.Time) (Meeting, error) {
	if len(m.Hours) == 0 {
		return Meeting{}, errors.New("meeting has no hour codes")
	}

	wdays := make([]int, 0, len(m.Days))
	for _, code := range m.Days {
		iso, ok := dates.CodeToISO(code)
		if !ok || iso > 6 {
			return Meeting{}, fmt.Errorf("unknown working-day code %q", code)
		}
		wdays = append(wdays, iso)
	}
	sort.Ints(wdays)

	startHour := gridBaseHour + m.Hours[0]
	endHour := gridBaseHour + m.Hours[len(m.Hours)-1]
	if startHour < gridBaseHour || endHour > 23 {
		return Meeting{}, fmt.Errorf("hour codes %v outside the period grid", m.Hours)
	}

	anchor := anchorDate(wdays, dates.DateOf(firstWorkday))
	start := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), startHour, 0, 0, 0, IST)
	end := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), endHour, 50, 0, 0, IST)

	return Meeting{Room: m.Room, Start: start, End: end, Weekdays: wdays}, nil
}

// anchorDate returns the earliest date on/after ref whose ISO weekday
// is in the ascending set wdays, carrying into the next week when every
// weekday in the set precedes ref's own.
func anchorDate(wdays []int, ref time.Time) time.Time {
	wd := dates.ISOWeekday(ref)
	i := sort.SearchInts(wdays, wd)
	if i < len(wdays) && wdays[i] == wd {
		return ref
	}
	if i == len(wdays) {
		return ref.AddDate(0, 0, wdays[0]+7-wd)
	}
	return ref.AddDate(0, 0, wdays[i]-wd)
}

// ResolveCourse resolves the requested sections of a course. secCodes
// nil selects every section. A requested section that does not exist
// falls back to the lecture section of the same number when the course
// only has lecture sections; otherwise it is skipped with a warning.
func ResolveCourse(code string, c *timetable.Course, secCodes []string, firstWorkday, ref time.Time) Course {
	if secCodes == nil {
		for sc := range c.Sections {
			secCodes = append(secCodes, sc)
		}
		sort.Strings(secCodes)
	}

	out := Course{Code: code, Title: c.Title}
	for _, sc := range secCodes {
		if sc == "" {
			applog.Warn("empty section code", "course", code)
			continue
		}
		raw := c.Sections[sc]
		if raw == nil {
			if fallback := lectureFallback(c.Sections, sc); fallback != nil {
				raw = fallback
			} else {
				applog.Warn("section not found in timetable", "course", code, "section", sc)
				continue
			}
		}

		sec := Section{Code: sc, Instructors: strings.Join(raw.Instructors, ", ")}
		for _, m := range raw.Meetings {
			resolved, err := ResolveMeeting(m, firstWorkday)
			if err != nil {
				applog.Warn("skipping meeting", "course", code, "section", sc, "reason", err)
				continue
			}
			sec.Meetings = append(sec.Meetings, resolved)
		}
		out.Sections = append(out.Sections, sec)
	}

	if exam, err := resolveExam(c.Midsem, midsemDuration, ref); err == nil {
		out.Midsem = exam
	} else {
		applog.Warn("unusable midsem descriptor", "course", code, "reason", err)
	}
	if exam, err := resolveExam(c.Compre, compreDuration, ref); err == nil {
		out.Compre = exam
	} else {
		applog.Warn("unusable compre descriptor", "course", code, "reason", err)
	}

	return out
}

// lectureFallback retries a missing section as L<number> when the
// course has nothing but lecture sections (common for courses whose
// sheet omits the requested tutorial/practical split).
func lectureFallback(sections map[string]*timetable.Section, sc string) *timetable.Section {
	for existing := range sections {
		if !strings.HasPrefix(existing, "L") {
			return nil
		}
	}
	if len(sc) < 2 {
		return nil
	}
	return sections["L"+sc[1:]]
}

// resolveExam turns a "dd/mm" + session descriptor into a timed window
// in the year of ref, rolling into the next year when the date has
// already passed.
func resolveExam(slot *timetable.ExamSlot, duration time.Duration, ref time.Time) (*Exam, error) {
	if slot == nil {
		return nil, nil
	}

	parts := strings.Split(slot.Date, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("bad exam date %q", slot.Date)
	}
	day, err1 := strconv.Atoi(parts[0])
	month, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 {
		return nil, fmt.Errorf("bad exam date %q", slot.Date)
	}

	hour, ok := examSessions[slot.Session]
	if !ok {
		return nil, fmt.Errorf("unknown exam session %q", slot.Session)
	}

	today := dates.DateOf(ref)
	start := time.Date(ref.Year(), time.Month(month), day, hour, 0, 0, 0, IST)
	if dates.DateOf(start).Before(today) {
		start = start.AddDate(1, 0, 0)
	}

	return &Exam{Start: start, End: start.Add(duration)}, nil
}
