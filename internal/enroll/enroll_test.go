package enroll

import (
	"context"
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"

	"ttcal/internal/cms"
)

func TestSectionFilterUnmarshal(t *testing.T) {
	t.Parallel()

	t.Run("all", func(t *testing.T) {
		t.Parallel()
		var f SectionFilter
		if err := yaml.Unmarshal([]byte(`all`), &f); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !f.All || f.Sections != nil {
			t.Errorf("filter = %+v", f)
		}
	})

	t.Run("list", func(t *testing.T) {
		t.Parallel()
		var f SectionFilter
		if err := yaml.Unmarshal([]byte(`[L1, T2]`), &f); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if f.All || !reflect.DeepEqual(f.Sections, []string{"L1", "T2"}) {
			t.Errorf("filter = %+v", f)
		}
	})

	t.Run("bad scalar", func(t *testing.T) {
		t.Parallel()
		var f SectionFilter
		if err := yaml.Unmarshal([]byte(`some`), &f); err == nil {
			t.Error("expected error")
		}
	})
}

func TestApplyWhitelist(t *testing.T) {
	t.Parallel()

	reg := map[string][]string{
		"CS F111":  {"L1", "T2"},
		"BIO F110": {"P4"},
		"ME F112":  {"L2"},
	}

	got := ApplyWhitelist(reg, map[string]SectionFilter{
		"CS F111":  {All: true},
		"BIO F110": {Sections: []string{"P4", "P9"}}, // P9 unknown, dropped
		"EEE F111": {All: true},                      // unknown course, dropped
	})

	want := map[string][]string{
		"CS F111":  {"L1", "T2"},
		"BIO F110": {"P4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("whitelisted = %v, want %v", got, want)
	}
}

func TestApplyWhitelistAllUnknownSectionsKeepsNothing(t *testing.T) {
	t.Parallel()

	reg := map[string][]string{"CS F111": {"L1", "T2"}}
	got := ApplyWhitelist(reg, map[string]SectionFilter{
		"CS F111": {Sections: []string{"T9"}},
	})

	secs, ok := got["CS F111"]
	if !ok {
		t.Fatalf("whitelisted = %v", got)
	}
	// The list must be empty but non-nil: a nil section list reads as
	// "no filter" downstream and would select every section.
	if secs == nil {
		t.Fatal("section list is nil")
	}
	if len(secs) != 0 {
		t.Errorf("sections = %v, want none", secs)
	}
}

func TestApplyWhitelistNilKeepsEverything(t *testing.T) {
	t.Parallel()

	reg := map[string][]string{"CS F111": {"L1"}}
	if got := ApplyWhitelist(reg, nil); !reflect.DeepEqual(got, reg) {
		t.Errorf("whitelisted = %v", got)
	}
}

func TestApplyOverrides(t *testing.T) {
	t.Parallel()

	sections := map[string][]string{
		"CS F111":  {"L1", "T2"},
		"BIO F110": {"P4"},
	}

	got := ApplyOverrides(sections, map[string]map[string]string{
		"CS F111":  {"T2": "T5"},
		"BIO F110": {"P9": "P1"}, // unknown section, ignored
		"EEE F111": {"L1": "L2"}, // unknown course, ignored
	})

	want := map[string][]string{
		"CS F111":  {"L1", "T5"},
		"BIO F110": {"P4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("overridden = %v, want %v", got, want)
	}
}

func TestApplyOverridesEmptyReplacement(t *testing.T) {
	t.Parallel()

	sections := map[string][]string{"CS F111": {"L1"}}
	got := ApplyOverrides(sections, map[string]map[string]string{
		"CS F111": {"L1": ""},
	})

	if !reflect.DeepEqual(got["CS F111"], []string{"L1"}) {
		t.Errorf("sections = %v, want L1 unchanged", got["CS F111"])
	}
}

// fakeService records enrolments against a canned course catalog.
type fakeService struct {
	catalog  map[string][]cms.Course
	enrolled []int
}

func (f *fakeService) SiteInfo(context.Context) (*cms.SiteInfo, error) {
	return &cms.SiteInfo{UserID: 4211}, nil
}

func (f *fakeService) EnrolledCourses(context.Context, int) ([]cms.Course, error) {
	return []cms.Course{{ID: 100}}, nil
}

func (f *fakeService) SearchCourses(_ context.Context, query string) ([]cms.Course, error) {
	return f.catalog[query], nil
}

func (f *fakeService) SelfEnrol(_ context.Context, courseID int) error {
	f.enrolled = append(f.enrolled, courseID)
	return nil
}

func TestEnrolAll(t *testing.T) {
	t.Parallel()

	svc := &fakeService{catalog: map[string][]cms.Course{
		"CS F111 L":  {{ID: 100, FullName: "CS F111 CP L"}}, // already enrolled
		"CS F111 L1": {{ID: 101, FullName: "CS F111 CP L1"}},
		"CS F111 T2": {{ID: 102, FullName: "CS F111 CP T2"}},
		// "CS F111 T" missing: general pages are optional
	}}

	err := EnrolAll(context.Background(), svc, map[string][]string{
		"CS F111": {"L1", "T2"},
	})
	if err != nil {
		t.Fatalf("EnrolAll: %v", err)
	}

	want := []int{101, 102}
	if !reflect.DeepEqual(svc.enrolled, want) {
		t.Errorf("enrolled = %v, want %v", svc.enrolled, want)
	}
}

func TestEnrolAllSkipsEmptySectionCodes(t *testing.T) {
	t.Parallel()

	svc := &fakeService{catalog: map[string][]cms.Course{}}
	err := EnrolAll(context.Background(), svc, map[string][]string{
		"CS F111": {""},
	})
	if err != nil {
		t.Fatalf("EnrolAll: %v", err)
	}
	if len(svc.enrolled) != 0 {
		t.Errorf("enrolled = %v, want none", svc.enrolled)
	}
}
