package events

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"ttcal/internal/dates"
	"ttcal/internal/schedule"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// A spring 2021 calendar: classes Jan 11 to Apr 30, Republic Day off,
// one Saturday running on Tuesday's timetable, midsem spanning two
// Mondays.
func testCalendar() *dates.Calendar {
	return &dates.Calendar{
		Holidays:     map[time.Time]bool{date(2021, time.January, 26): true}, // a Tuesday
		DayOverrides: map[time.Time]string{date(2021, time.February, 20): "TU"},
		FirstWorkday: date(2021, time.January, 11),
		LastWorkday:  date(2021, time.April, 30),
		Midsem:       &dates.Span{Start: date(2021, time.March, 8), End: date(2021, time.March, 16)},
	}
}

func testSynth() *Synthesizer {
	return &Synthesizer{Cal: testCalendar(), TimeZone: "Asia/Kolkata"}
}

func meetingOn(wdays ...int) schedule.Meeting {
	return schedule.Meeting{
		Room:     "F102",
		Start:    time.Date(2021, time.January, 11, 9, 0, 0, 0, schedule.IST),
		End:      time.Date(2021, time.January, 11, 9, 50, 0, 0, schedule.IST),
		Weekdays: wdays,
	}
}

func TestMeetingEventRule(t *testing.T) {
	t.Parallel()

	p, err := testSynth().meetingEvent("Computer Programming",
		schedule.Section{Code: "L1", Instructors: "John Smith"}, meetingOn(1, 3))
	if err != nil {
		t.Fatalf("meetingEvent: %v", err)
	}

	if p.Title != "Computer Programming L1" {
		t.Errorf("Title = %q", p.Title)
	}
	if p.ColorID != "9" || p.ReminderMinutes != 10 {
		t.Errorf("ColorID = %q, ReminderMinutes = %d", p.ColorID, p.ReminderMinutes)
	}
	for _, want := range []string{"FREQ=WEEKLY", "BYDAY=MO,WE", "UNTIL=20210501T000000Z"} {
		if !strings.Contains(p.RRule, want) {
			t.Errorf("RRule = %q, missing %q", p.RRule, want)
		}
	}
}

func TestExclusionsMatchMeetingWeekdays(t *testing.T) {
	t.Parallel()

	s := testSynth()

	t.Run("holiday on a meeting weekday", func(t *testing.T) {
		t.Parallel()
		ex := s.excludeDates(meetingOn(2), nil)
		if len(ex) != 3 || !ex[0].Equal(date(2021, time.January, 26)) {
			t.Fatalf("exclusions = %v", ex)
		}
	})

	t.Run("holiday on another weekday ignored", func(t *testing.T) {
		t.Parallel()
		for _, d := range s.excludeDates(meetingOn(1), nil) {
			if d.Equal(date(2021, time.January, 26)) {
				t.Fatal("Tuesday holiday excluded from a Monday meeting")
			}
		}
	})

	t.Run("midsem spanning a weekday twice excludes both", func(t *testing.T) {
		t.Parallel()
		ex := s.excludeDates(meetingOn(1), nil)
		want := []time.Time{date(2021, time.March, 8), date(2021, time.March, 15)}
		if !reflect.DeepEqual(ex, want) {
			t.Errorf("exclusions = %v, want %v", ex, want)
		}
	})
}

func TestSaturdayOverride(t *testing.T) {
	t.Parallel()

	s := testSynth()
	sat := date(2021, time.February, 20)

	t.Run("included for the target weekday's meetings", func(t *testing.T) {
		t.Parallel()
		in := s.includeDates(meetingOn(2))
		if len(in) != 1 || !in[0].Equal(sat) {
			t.Fatalf("inclusions = %v", in)
		}
		// The inclusion must not reappear as an exclusion.
		for _, d := range s.excludeDates(meetingOn(2), in) {
			if d.Equal(sat) {
				t.Error("override date both included and excluded")
			}
		}
	})

	t.Run("excluded for the actual weekday's meetings", func(t *testing.T) {
		t.Parallel()
		m := meetingOn(6)
		in := s.includeDates(m)
		if len(in) != 0 {
			t.Fatalf("inclusions = %v, want none", in)
		}
		// The midsem break also covers one Saturday (March 13).
		ex := s.excludeDates(m, in)
		want := []time.Time{sat, date(2021, time.March, 13)}
		if !reflect.DeepEqual(ex, want) {
			t.Fatalf("exclusions = %v, want %v", ex, want)
		}
	})
}

func TestPayloadDatesCarryMeetingTime(t *testing.T) {
	t.Parallel()

	p, err := testSynth().meetingEvent("Computer Programming",
		schedule.Section{Code: "T1"}, meetingOn(2))
	if err != nil {
		t.Fatalf("meetingEvent: %v", err)
	}

	wantIn := time.Date(2021, time.February, 20, 9, 0, 0, 0, schedule.IST)
	if len(p.IncludeDates) != 1 || !p.IncludeDates[0].Equal(wantIn) {
		t.Errorf("IncludeDates = %v, want [%s]", p.IncludeDates, wantIn)
	}
	wantEx := time.Date(2021, time.January, 26, 9, 0, 0, 0, schedule.IST)
	if len(p.ExcludeDates) != 3 || !p.ExcludeDates[0].Equal(wantEx) {
		t.Errorf("ExcludeDates = %v", p.ExcludeDates)
	}
}

func TestRecurrenceRendering(t *testing.T) {
	t.Parallel()

	p, err := testSynth().meetingEvent("Computer Programming",
		schedule.Section{Code: "T1"}, meetingOn(2))
	if err != nil {
		t.Fatalf("meetingEvent: %v", err)
	}

	lines := p.Recurrence()
	if len(lines) != 3 {
		t.Fatalf("lines = %v", lines)
	}
	if !strings.HasPrefix(lines[0], "RRULE:FREQ=WEEKLY") {
		t.Errorf("lines[0] = %q", lines[0])
	}
	if lines[1] != "RDATE;TZID=Asia/Kolkata:20210220T090000" {
		t.Errorf("lines[1] = %q", lines[1])
	}
	wantEx := "EXDATE;TZID=Asia/Kolkata:20210126T090000,20210309T090000,20210316T090000"
	if lines[2] != wantEx {
		t.Errorf("lines[2] = %q, want %q", lines[2], wantEx)
	}
}

func TestOneOffEventsHaveNoRecurrence(t *testing.T) {
	t.Parallel()

	p := Payload{Title: "Computer Programming Compre"}
	if lines := p.Recurrence(); lines != nil {
		t.Errorf("Recurrence = %v, want nil", lines)
	}
}

func TestCourseEvents(t *testing.T) {
	t.Parallel()

	course := schedule.Course{
		Code:  "CS F111",
		Title: "Computer Programming",
		Sections: []schedule.Section{
			{Code: "L1", Meetings: []schedule.Meeting{meetingOn(1, 3)}},
			{Code: "P1", Meetings: []schedule.Meeting{meetingOn(6)}},
		},
		Midsem: &schedule.Exam{
			Start: time.Date(2021, time.March, 14, 9, 0, 0, 0, schedule.IST),
			End:   time.Date(2021, time.March, 14, 10, 30, 0, 0, schedule.IST),
		},
		Compre: &schedule.Exam{
			Start: time.Date(2021, time.May, 7, 14, 0, 0, 0, schedule.IST),
			End:   time.Date(2021, time.May, 7, 17, 0, 0, 0, schedule.IST),
		},
	}

	got := testSynth().CourseEvents(course)
	if len(got) != 4 {
		t.Fatalf("events = %d, want 4", len(got))
	}

	wantTitles := []string{
		"Computer Programming L1",
		"Computer Programming P1",
		"Computer Programming Midsem",
		"Computer Programming Compre",
	}
	wantColors := []string{"9", "6", "4", "7"}
	for i, p := range got {
		if p.Title != wantTitles[i] {
			t.Errorf("events[%d].Title = %q, want %q", i, p.Title, wantTitles[i])
		}
		if p.ColorID != wantColors[i] {
			t.Errorf("events[%d].ColorID = %q, want %q", i, p.ColorID, wantColors[i])
		}
	}
	if got[2].RRule != "" || got[3].RRule != "" {
		t.Error("exam events must not recur")
	}
}
