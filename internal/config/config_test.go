package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Timezone != "Asia/Kolkata" || cfg.Calendar != "Timetable" {
		t.Errorf("defaults = %+v", cfg)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("default config not written: %v", err)
	}

	// A second load must round-trip the defaults.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("Load again: %v", err)
	}
	if again.Spreadsheet.HeaderRows != cfg.Spreadsheet.HeaderRows {
		t.Errorf("round trip differs: %+v vs %+v", again, cfg)
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
calendar: Spring 2021
events_file: calendar.txt
courses:
  whitelist:
    CS F111: all
    BIO F110: [P4]
cms:
  address: cms.example.edu
  wstoken: secret
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Calendar != "Spring 2021" || cfg.Timezone != "Asia/Kolkata" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Spreadsheet.Columns.Compre != 8 {
		t.Errorf("columns not defaulted: %+v", cfg.Spreadsheet.Columns)
	}
	if !cfg.Courses.Whitelist["CS F111"].All {
		t.Errorf("whitelist = %+v", cfg.Courses.Whitelist)
	}
	if got := cfg.Courses.Whitelist["BIO F110"].Sections; len(got) != 1 || got[0] != "P4" {
		t.Errorf("whitelist = %+v", cfg.Courses.Whitelist)
	}
	if cfg.CMS == nil || cfg.CMS.Token != "secret" {
		t.Errorf("cms = %+v", cfg.CMS)
	}
}

func TestDatesOverrides(t *testing.T) {
	t.Parallel()

	d := DatesConfig{
		Semester:       2,
		ClassworkStart: "2021-01-11",
		MidsemStart:    "2021-03-08",
		MidsemEnd:      "2021-03-16",
		Holidays:       []string{"2021-01-26"},
		DayOverrides:   map[string]string{"2021-02-20": "TU"},
	}

	ov, err := d.Overrides()
	if err != nil {
		t.Fatalf("Overrides: %v", err)
	}
	if !ov.ClassworkStart.Equal(time.Date(2021, time.January, 11, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("ClassworkStart = %s", ov.ClassworkStart)
	}
	if ov.Midsem == nil || !ov.Midsem.End.Equal(time.Date(2021, time.March, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Midsem = %+v", ov.Midsem)
	}
	if len(ov.Holidays) != 1 || ov.DayOverrides[time.Date(2021, time.February, 20, 0, 0, 0, 0, time.UTC)] != "TU" {
		t.Errorf("overrides = %+v", ov)
	}
}

func TestDatesOverridesErrors(t *testing.T) {
	t.Parallel()

	if _, err := (DatesConfig{ClassworkStart: "11/01/2021"}).Overrides(); err == nil {
		t.Error("expected error for bad date form")
	}
	if _, err := (DatesConfig{MidsemStart: "2021-03-08"}).Overrides(); err == nil {
		t.Error("expected error for half-open midsem range")
	}
}

func TestSaveIsAtomicAndPrivate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}
