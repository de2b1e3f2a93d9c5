// Package erp recovers the user's registered sections from an ERP
// weekly-schedule grid dump. Each grid cell reads like
// "CS F111 Computer Programming - L1"; the course code is the first two
// tokens and the section trails the dash.
package erp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"

	applog "ttcal/internal/log"
)

var cellRE = regexp.MustCompile(`^(\S+)\s+(\S+) - ([A-Z]+\d+)`)

// ParseWeeklyGrid scans grid cells, one per line, and returns the
// registered sections per course code. Lines that are not schedule
// cells (day headers, blanks) are skipped.
func ParseWeeklyGrid(r io.Reader) (map[string][]string, error) {
	seen := map[string]map[string]bool{}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		m := cellRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		code := m[1] + " " + m[2]
		if seen[code] == nil {
			seen[code] = map[string]bool{}
		}
		seen[code][m[3]] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read schedule grid: %w", err)
	}

	out := make(map[string][]string, len(seen))
	for code, secs := range seen {
		list := make([]string, 0, len(secs))
		for s := range secs {
			list = append(list, s)
		}
		sort.Strings(list)
		out[code] = list
	}
	return out, nil
}

// ParseWeeklyGridFile reads the grid dump at path.
func ParseWeeklyGridFile(path string) (map[string][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schedule grid: %w", err)
	}
	defer f.Close()

	sections, err := ParseWeeklyGrid(f)
	if err != nil {
		return nil, err
	}
	applog.Info("registered sections loaded", "path", path, "courses", len(sections))
	return sections, nil
}
