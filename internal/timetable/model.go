// Package timetable reconstructs course/section/meeting records from
// the institution's flat timetable spreadsheet and caches the result as
// JSON so later runs skip re-parsing.
package timetable

// RawMeeting is one room+weekday+hour entry as it appears on the
// spreadsheet, before any date resolution. Hours index the fixed campus
// period grid and are always a single contiguous run; non-contiguous
// hour lists are split into one RawMeeting per hour at extraction time.
type RawMeeting struct {
	Room  string   `json:"room"`
	Days  []string `json:"days"`
	Hours []int    `json:"hours"`
}

// Section is one weekly meeting-group of a course, keyed in the course
// by its code (section-type letter + number, e.g. "L1", "T2").
type Section struct {
	Instructors []string     `json:"instructors"`
	Meetings    []RawMeeting `json:"meetings"`
}

// ExamSlot is the raw exam descriptor from the sheet: a "dd/mm" date
// substring and a session code ("FN" forenoon, "AN" afternoon).
type ExamSlot struct {
	Date    string `json:"date"`
	Session string `json:"session"`
}

// Course groups the sections of one course code.
type Course struct {
	Title    string              `json:"title"`
	Sections map[string]*Section `json:"sections"`
	Midsem   *ExamSlot           `json:"midsem,omitempty"`
	Compre   *ExamSlot           `json:"compre,omitempty"`
}

// DB is the parsed timetable keyed by course code.
type DB map[string]*Course
