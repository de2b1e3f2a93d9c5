package dates

import (
	"bufio"
	"io"
	"strings"
	"time"

	"ttcal/internal/fuzzy"
	applog "ttcal/internal/log"
)

// Entry is one row-pair of the semester events table: one date (or a
// two-date range sharing a label) and the event names attached to it.
type Entry struct {
	Dates []time.Time
	Names []string
}

// Table is the parsed events table in source order. Order matters: all
// fuzzy lookups keep the first match they encounter.
type Table []Entry

// Milestone keys recognized by FindMilestone. The phrases are scored
// against event names with fuzzy matching, so minor wording drift in
// the source table still resolves.
const (
	MilestoneClassworkBegins = "classwork-begins"
	MilestoneClassworkEnds   = "classwork-ends"
	MilestoneMidsem          = "midsem"
)

var milestonePhrases = map[string]string{
	MilestoneClassworkBegins: "class work begins",
	MilestoneClassworkEnds:   "last day for class work",
	MilestoneMidsem:          "mid-semester test (classwork suspended)",
}

const dayChangePhrase = "timetable to be followed"

// ParseTable reads the tab-separated events table export. Each line
// holds repeating (date-string, event-name) cell pairs. Rows whose date
// fails to resolve are logged and skipped; the import continues.
func ParseTable(r io.Reader, ref time.Time) (Table, error) {
	var table Table

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		cells := strings.Split(sc.Text(), "\t")
		for i := 0; i+1 < len(cells); i += 2 {
			dateStr := strings.TrimSpace(cells[i])
			name := strings.TrimSpace(cells[i+1])
			if dateStr == "" {
				continue
			}
			resolved, err := ResolveDates(dateStr, ref)
			if err != nil {
				applog.Warn("skipping events row", "date", dateStr, "reason", err)
				continue
			}
			table = table.add(resolved, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// add appends name to the entry holding exactly these dates, creating
// the entry if needed.
func (t Table) add(dd []time.Time, name string) Table {
	for i := range t {
		if sameDates(t[i].Dates, dd) {
			t[i].Names = append(t[i].Names, name)
			return t
		}
	}
	return append(t, Entry{Dates: dd, Names: []string{name}})
}

func sameDates(a, b []time.Time) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// FindEvent returns the dates of the first entry whose name scores
// above threshold against the given name. Spaces and hyphens are junk
// for the comparison.
func (t Table) FindEvent(name string, threshold float64) ([]time.Time, bool) {
	want := strings.ToLower(name)
	for _, e := range t {
		for _, n := range e.Names {
			if fuzzy.RatioJunk(strings.ToLower(n), want, " -") > threshold {
				return e.Dates, true
			}
		}
	}
	return nil, false
}

// FindMilestone locates a named semester milestone.
func (t Table) FindMilestone(key string) ([]time.Time, bool) {
	phrase, ok := milestonePhrases[key]
	if !ok {
		return nil, false
	}
	return t.FindEvent(phrase, 0.8)
}

// Holidays returns every date whose entry carries at least one event
// name ending in the literal "(H)" suffix.
func (t Table) Holidays() []time.Time {
	var out []time.Time
	for _, e := range t {
		for _, n := range e.Names {
			if strings.HasSuffix(n, "(H)") {
				out = append(out, e.Dates...)
				break
			}
		}
	}
	return out
}

// DayOverrides extracts "X-day's timetable to be followed" declarations
// and returns the affected dates mapped to the RFC code of the weekday
// whose timetable applies. The weekday is recovered by fuzzy-matching
// the text preceding the phrase against the seven weekday names.
func (t Table) DayOverrides() map[time.Time]string {
	out := make(map[time.Time]string)
	for _, e := range t {
		for _, name := range e.Names {
			lower := strings.ToLower(name)
			if fuzzy.RatioJunk(lower, dayChangePhrase, " ") <= 0.8 {
				continue
			}
			for _, b := range fuzzy.Blocks(lower, dayChangePhrase, " ") {
				if b.Size < 5 {
					continue
				}
				prefix := string([]rune(name)[:b.A])
				if day, ok := fuzzy.ClosestName(prefix, weekdayNames[:], 0.6); ok {
					code := RFCCode(nameToISO(day))
					for _, d := range e.Dates {
						out[d] = code
					}
				}
				break
			}
		}
	}
	return out
}

func nameToISO(name string) int {
	for i, n := range weekdayNames {
		if n == name {
			return i + 1
		}
	}
	return 1
}
