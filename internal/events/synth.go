// Package events turns resolved courses and the semester's exception
// calendar into calendar-event payloads with weekly recurrence rules
// and inclusion/exclusion date sets.
package events

import (
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	"ttcal/internal/dates"
	applog "ttcal/internal/log"
	"ttcal/internal/schedule"
)

// Color tags understood by the calendar service, keyed by section type.
var sectionColors = map[byte]string{'L': "9", 'P': "6", 'T': "10"}

const (
	midsemColor = "4"
	compreColor = "7"

	reminderMinutes = 10

	stampLayout = "20060102T150405"
)

var rruleDays = [...]rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

// Payload is one synthesized calendar event, ready for the
// calendar-service collaborator or the ICS exporter. RRule is empty for
// one-off events (midsem/compre windows).
type Payload struct {
	Title       string
	Description string
	Location    string

	Start    time.Time
	End      time.Time
	TimeZone string // IANA name used for TZID labels

	RRule        string // value only, no "RRULE:" prefix
	IncludeDates []time.Time
	ExcludeDates []time.Time

	ColorID         string
	ReminderMinutes int
}

// Recurrence renders the payload's recurrence property lines. The
// inclusion and exclusion lists share the meeting's start time and
// timezone.
func (p Payload) Recurrence() []string {
	if p.RRule == "" {
		return nil
	}
	lines := []string{"RRULE:" + p.RRule}
	if len(p.IncludeDates) > 0 {
		lines = append(lines, "RDATE;TZID="+p.TimeZone+":"+joinStamps(p.IncludeDates))
	}
	if len(p.ExcludeDates) > 0 {
		lines = append(lines, "EXDATE;TZID="+p.TimeZone+":"+joinStamps(p.ExcludeDates))
	}
	return lines
}

func joinStamps(tt []time.Time) string {
	out := ""
	for i, t := range tt {
		if i > 0 {
			out += ","
		}
		out += t.Format(stampLayout)
	}
	return out
}

// Synthesizer builds payloads against one semester's exception
// calendar.
type Synthesizer struct {
	Cal      *dates.Calendar
	TimeZone string
}

// CourseEvents produces one recurring event per section meeting plus a
// one-off event each for the course's midsem and compre windows.
func (s *Synthesizer) CourseEvents(c schedule.Course) []Payload {
	var out []Payload
	for _, sec := range c.Sections {
		for _, m := range sec.Meetings {
			p, err := s.meetingEvent(c.Title, sec, m)
			if err != nil {
				applog.Warn("skipping meeting event", "course", c.Code, "section", sec.Code, "reason", err)
				continue
			}
			out = append(out, p)
		}
	}
	if c.Midsem != nil {
		out = append(out, s.oneOff(c.Title+" Midsem", c.Midsem, midsemColor))
	}
	if c.Compre != nil {
		out = append(out, s.oneOff(c.Title+" Compre", c.Compre, compreColor))
	}
	return out
}

func (s *Synthesizer) meetingEvent(title string, sec schedule.Section, m schedule.Meeting) (Payload, error) {
	byday := make([]rrule.Weekday, 0, len(m.Weekdays))
	for _, iso := range m.Weekdays {
		byday = append(byday, rruleDays[iso-1])
	}

	// The rule runs through the last working day. UNTIL renders in the
	// library's UTC date-time form; midnight of the day after the last
	// working day keeps that day's meetings in every timezone.
	until := s.Cal.LastWorkday.AddDate(0, 0, 1)
	r, err := rrule.NewRRule(rrule.ROption{
		Freq:      rrule.WEEKLY,
		Byweekday: byday,
		Until:     until,
	})
	if err != nil {
		return Payload{}, err
	}

	indates := s.includeDates(m)
	exdates := s.excludeDates(m, indates)

	return Payload{
		Title:           title + " " + sec.Code,
		Description:     sec.Instructors,
		Location:        m.Room,
		Start:           m.Start,
		End:             m.End,
		TimeZone:        s.TimeZone,
		RRule:           r.String(),
		IncludeDates:    withMeetingTime(indates, m.Start),
		ExcludeDates:    withMeetingTime(exdates, m.Start),
		ColorID:         sectionColors[sec.Code[0]],
		ReminderMinutes: reminderMinutes,
	}, nil
}

func (s *Synthesizer) oneOff(title string, exam *schedule.Exam, color string) Payload {
	return Payload{
		Title:    title,
		Start:    exam.Start,
		End:      exam.End,
		TimeZone: s.TimeZone,
		ColorID:  color,
	}
}

// includeDates are the day-override dates whose target weekday is one
// of the meeting's own: a Saturday told to follow Tuesday's timetable
// becomes an extra occurrence of every Tuesday meeting.
func (s *Synthesizer) includeDates(m schedule.Meeting) []time.Time {
	var out []time.Time
	for d, code := range s.Cal.DayOverrides {
		target, ok := dates.ISOFromRFC(code)
		if ok && hasWeekday(m.Weekdays, target) {
			out = append(out, d)
		}
	}
	sortDates(out)
	return out
}

// excludeDates collects, for dates whose actual weekday matches the
// meeting: every holiday, every day inside the midsem break, and every
// day-override date that is not among the meeting's inclusions.
// Holidays are added after inclusion computation and unconditionally,
// so a holiday always suppresses the occurrence.
func (s *Synthesizer) excludeDates(m schedule.Meeting, indates []time.Time) []time.Time {
	set := map[time.Time]bool{}

	for d := range s.Cal.Holidays {
		if hasWeekday(m.Weekdays, dates.ISOWeekday(d)) {
			set[d] = true
		}
	}

	if ms := s.Cal.Midsem; ms != nil {
		for d := ms.Start; !d.After(ms.End); d = d.AddDate(0, 0, 1) {
			if hasWeekday(m.Weekdays, dates.ISOWeekday(d)) {
				set[d] = true
			}
		}
	}

	for d := range s.Cal.DayOverrides {
		if hasWeekday(m.Weekdays, dates.ISOWeekday(d)) && !containsDate(indates, d) {
			set[d] = true
		}
	}

	out := make([]time.Time, 0, len(set))
	for d := range set {
		out = append(out, d)
	}
	sortDates(out)
	return out
}

// withMeetingTime rebinds each date to the meeting's start clock time
// in the meeting's own zone.
func withMeetingTime(dd []time.Time, start time.Time) []time.Time {
	out := make([]time.Time, 0, len(dd))
	for _, d := range dd {
		out = append(out, time.Date(
			d.Year(), d.Month(), d.Day(),
			start.Hour(), start.Minute(), 0, 0, start.Location(),
		))
	}
	return out
}

func hasWeekday(wdays []int, iso int) bool {
	for _, w := range wdays {
		if w == iso {
			return true
		}
	}
	return false
}

func containsDate(dd []time.Time, d time.Time) bool {
	for _, x := range dd {
		if x.Equal(d) {
			return true
		}
	}
	return false
}

func sortDates(dd []time.Time) {
	sort.Slice(dd, func(i, j int) bool { return dd[i].Before(dd[j]) })
}
