package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"ttcal/internal/dates"
	applog "ttcal/internal/log"
)

// ErrUnsortedHours marks an hour-code list that is not strictly
// ascending. The sheet never legitimately contains one, so guessing the
// intended order is worse than skipping the row.
var ErrUnsortedHours = errors.New("hour codes not in ascending order")

// Columns is the fixed zero-indexed column layout of the institutional
// export. It is static configuration, never auto-detected.
type Columns struct {
	Code       int `yaml:"code"`
	Title      int `yaml:"title"`
	Section    int `yaml:"section"`
	Instructor int `yaml:"instructor"`
	Room       int `yaml:"room"`
	Days       int `yaml:"days"`
	Hours      int `yaml:"hours"`
	Midsem     int `yaml:"midsem"`
	Compre     int `yaml:"compre"`
}

// DefaultColumns matches the current export format.
func DefaultColumns() Columns {
	return Columns{
		Code: 0, Title: 1, Section: 2, Instructor: 3, Room: 4,
		Days: 5, Hours: 6, Midsem: 7, Compre: 8,
	}
}

// ExtractFile parses every sheet of the spreadsheet at path, skipping
// headerRows leading rows per sheet.
func ExtractFile(path string, cols Columns, headerRows int) (DB, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer f.Close()

	db := DB{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) > headerRows {
			rows = rows[headerRows:]
		} else {
			rows = nil
		}
		for code, course := range ExtractRows(rows, cols) {
			db[code] = course
		}
	}

	applog.Info("timetable extracted", "path", path, "courses", len(db))
	return db, nil
}

// cursor carries the positional state of the row stream: the open
// course, the current section-type letter, the open section and the
// auto-incrementing section counter. It is threaded through the single
// forward pass; there is no backtracking.
type cursor struct {
	course  *Course
	secType string
	section *Section
	counter int
}

// ExtractRows runs the row state machine over already-read sheet rows
// (headers removed). Malformed rows are absorbed or skipped with a log
// line; only the spreadsheet itself failing to open is an error.
func ExtractRows(rows [][]string, cols Columns) DB {
	db := DB{}
	var cur cursor

	for i, row := range rows {
		cell := func(idx int) string {
			if idx >= 0 && idx < len(row) {
				return strings.TrimSpace(row[idx])
			}
			return ""
		}

		// Rows without an instructor are decorative filler.
		instructor := cell(cols.Instructor)
		if instructor == "" {
			continue
		}

		code := cell(cols.Code)
		title := cell(cols.Title)

		switch {
		case code != "":
			course := &Course{
				Title:    TitleCase(title),
				Sections: map[string]*Section{},
				Midsem:   parseExamSlot(cell(cols.Midsem)),
				Compre:   parseExamSlot(cell(cols.Compre)),
			}
			db[code] = course
			cur = cursor{course: course, secType: "L", counter: 1}
		case title != "" && cur.course != nil:
			// A title with no course code switches the section type
			// ("Tutorial" -> T, "Practical" -> P).
			cur.secType = strings.ToUpper(title[:1])
			cur.counter = 1
			cur.section = nil
		}

		if cur.course == nil {
			applog.Warn("skipping timetable row with no open course", "row", i)
			continue
		}

		// On a course header row the title names the course, not a
		// section, so only a room or an explicit section number opens a
		// section there. This keeps a course that starts directly with
		// tutorials from growing an empty L1.
		secCell := cell(cols.Section)
		sectionTrigger := secCell != "" || cell(cols.Room) != "" || (code == "" && title != "")
		if sectionTrigger {
			num := cur.counter
			if secCell != "" {
				if n, err := strconv.Atoi(secCell); err == nil {
					num = n
				}
			}
			cur.counter = num + 1
			sec := &Section{}
			cur.course.Sections[cur.secType+strconv.Itoa(num)] = sec
			cur.section = sec
		}
		if cur.section == nil {
			applog.Warn("skipping timetable row with no open section", "row", i)
			continue
		}

		addInstructor(cur.section, instructor)

		days, hours := cell(cols.Days), cell(cols.Hours)
		if days != "" && hours != "" {
			meetings, err := parseMeetings(cell(cols.Room), days, hours)
			if err != nil {
				applog.Warn("skipping meeting cell", "row", i, "reason", err)
				continue
			}
			cur.section.Meetings = append(cur.section.Meetings, meetings...)
		}
	}

	return db
}

// addInstructor appends name unless already present case-insensitively,
// preserving first-seen casing.
func addInstructor(sec *Section, name string) {
	for _, existing := range sec.Instructors {
		if strings.EqualFold(existing, name) {
			return
		}
	}
	sec.Instructors = append(sec.Instructors, name)
}

// parseMeetings turns one room/days/hours cell triple into raw
// meetings: a contiguous hour run stays one meeting, anything else is
// split into one single-hour meeting per hour.
func parseMeetings(room, days, hours string) ([]RawMeeting, error) {
	var dd []string
	for _, code := range strings.Fields(days) {
		iso, ok := dates.CodeToISO(code)
		if !ok || iso > 6 {
			return nil, fmt.Errorf("unknown working-day code %q", code)
		}
		dd = append(dd, code)
	}
	if len(dd) == 0 {
		return nil, errors.New("no weekday codes")
	}

	hh, err := parseHours(hours)
	if err != nil {
		return nil, err
	}

	if contiguous(hh) {
		return []RawMeeting{{Room: room, Days: dd, Hours: hh}}, nil
	}
	out := make([]RawMeeting, 0, len(hh))
	for _, h := range hh {
		out = append(out, RawMeeting{Room: room, Days: dd, Hours: []int{h}})
	}
	return out, nil
}

func parseHours(s string) ([]int, error) {
	fields := strings.Fields(s)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bad hour code %q", f)
		}
		out = append(out, n)
	}
	if len(out) == 0 {
		return nil, errors.New("no hour codes")
	}
	for i := 1; i < len(out); i++ {
		if out[i] <= out[i-1] {
			return nil, ErrUnsortedHours
		}
	}
	return out, nil
}

func contiguous(hh []int) bool {
	for i := 1; i < len(hh); i++ {
		if hh[i] != hh[i-1]+1 {
			return false
		}
	}
	return true
}

// parseExamSlot splits an exam descriptor cell ("14/03 FN") into its
// date substring and session code.
func parseExamSlot(s string) *ExamSlot {
	if s == "" {
		return nil
	}
	fields := strings.Fields(s)
	slot := &ExamSlot{Date: fields[0]}
	if len(fields) > 1 {
		slot.Session = fields[1]
	}
	return slot
}
