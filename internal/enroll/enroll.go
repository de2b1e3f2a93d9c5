// Package enroll filters the registered-section map through the
// configured whitelist and overrides, and self-enrols the user in the
// matching CMS courses.
package enroll

import (
	"context"
	"fmt"
	"sort"

	"ttcal/internal/cms"
	applog "ttcal/internal/log"
)

// SectionFilter is one whitelist entry: either every section of the
// course ("all") or an explicit list.
type SectionFilter struct {
	All      bool
	Sections []string
}

// UnmarshalYAML accepts the scalar "all" or a sequence of section
// codes.
func (f *SectionFilter) UnmarshalYAML(unmarshal func(any) error) error {
	var scalar string
	if err := unmarshal(&scalar); err == nil {
		if scalar != "all" {
			return fmt.Errorf("bad section filter %q (want \"all\" or a list)", scalar)
		}
		f.All = true
		return nil
	}

	var list []string
	if err := unmarshal(&list); err != nil {
		return err
	}
	f.Sections = list
	return nil
}

// ApplyWhitelist keeps only whitelisted courses and sections. A nil
// whitelist keeps everything. References to courses or sections the
// registration map does not contain are logged and skipped.
func ApplyWhitelist(reg map[string][]string, whitelist map[string]SectionFilter) map[string][]string {
	if whitelist == nil {
		return reg
	}

	out := map[string][]string{}
	for code, filter := range whitelist {
		secs, ok := reg[code]
		if !ok {
			applog.Warn("unknown course in whitelist", "course", code)
			continue
		}
		if filter.All {
			out[code] = secs
			continue
		}
		// kept stays non-nil even when every listed section is unknown:
		// downstream a nil section list means "no filter, take all".
		kept := []string{}
		for _, want := range filter.Sections {
			if containsString(secs, want) {
				kept = append(kept, want)
			} else {
				applog.Warn("unknown section in whitelist", "course", code, "section", want)
			}
		}
		out[code] = kept
	}
	return out
}

// ApplyOverrides replaces individual section codes in place, for
// courses where the registration system reports a different section
// than the one actually attended.
func ApplyOverrides(sections map[string][]string, overrides map[string]map[string]string) map[string][]string {
	for code, subs := range overrides {
		secs, ok := sections[code]
		if !ok {
			applog.Warn("unknown course in overrides", "course", code)
			continue
		}
		for old, replacement := range subs {
			if replacement == "" {
				applog.Warn("empty section in overrides", "course", code, "section", old)
				continue
			}
			i := indexOfString(secs, old)
			if i < 0 {
				applog.Warn("unknown section in overrides", "course", code, "section", old)
				continue
			}
			secs[i] = replacement
		}
	}
	return sections
}

// CourseService is the slice of the CMS client the enroller uses.
type CourseService interface {
	SiteInfo(ctx context.Context) (*cms.SiteInfo, error)
	EnrolledCourses(ctx context.Context, userID int) ([]cms.Course, error)
	SearchCourses(ctx context.Context, query string) ([]cms.Course, error)
	SelfEnrol(ctx context.Context, courseID int) error
}

// EnrolAll enrols the user in the CMS course of every selected section,
// plus the course-wide page of each section type when one exists (the
// "CS F111 L" page alongside "CS F111 L1"). Already-enrolled courses
// are skipped; individual failures are logged, not fatal.
func EnrolAll(ctx context.Context, svc CourseService, courses map[string][]string) error {
	info, err := svc.SiteInfo(ctx)
	if err != nil {
		return fmt.Errorf("resolve cms identity: %w", err)
	}
	existing, err := svc.EnrolledCourses(ctx, info.UserID)
	if err != nil {
		return fmt.Errorf("list enrolled courses: %w", err)
	}
	enrolled := map[int]bool{}
	for _, c := range existing {
		enrolled[c.ID] = true
	}

	codes := make([]string, 0, len(courses))
	for code := range courses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		for _, sec := range courses[code] {
			if sec == "" {
				applog.Warn("empty section code", "course", code)
				continue
			}
			// The general page is optional, its absence is not worth a
			// log line.
			enrolFirstMatch(ctx, svc, enrolled, code+" "+sec[:1], false)
			enrolFirstMatch(ctx, svc, enrolled, code+" "+sec, true)
		}
	}
	return nil
}

func enrolFirstMatch(ctx context.Context, svc CourseService, enrolled map[int]bool, query string, warnMissing bool) {
	matches, err := svc.SearchCourses(ctx, query)
	if err != nil {
		applog.Warn("cms search failed", "query", query, "reason", err)
		return
	}
	if len(matches) == 0 {
		if warnMissing {
			applog.Warn("no cms course found", "query", query)
		}
		return
	}

	course := matches[0]
	if enrolled[course.ID] {
		applog.Debug("already enrolled", "course", course.FullName)
		return
	}
	if err := svc.SelfEnrol(ctx, course.ID); err != nil {
		applog.Warn("enrolment failed", "course", course.FullName, "reason", err)
		return
	}
	enrolled[course.ID] = true
	applog.Info("enrolled", "course", course.FullName)
}

func containsString(ss []string, s string) bool {
	return indexOfString(ss, s) >= 0
}

func indexOfString(ss []string, s string) int {
	for i, x := range ss {
		if x == s {
			return i
		}
	}
	return -1
}
