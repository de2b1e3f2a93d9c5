// Package config provides the YAML configuration model with first-run
// creation, defaulting and atomic save.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"ttcal/internal/dates"
	"ttcal/internal/enroll"
	"ttcal/internal/timetable"
)

// SpreadsheetConfig locates the institutional timetable export.
type SpreadsheetConfig struct {
	// Path to the .xlsx export.
	Path string `yaml:"path"`
	// HeaderRows is the number of leading rows to skip on every sheet.
	HeaderRows int `yaml:"header_rows"`
	// Columns is the zero-indexed column layout of the export.
	Columns timetable.Columns `yaml:"columns"`
}

// DatesConfig holds explicit semester boundaries. Every field is
// optional; anything left empty is derived from the academic-calendar
// events file. Dates use the YYYY-MM-DD form.
type DatesConfig struct {
	Semester       int               `yaml:"semester"`
	ClassworkStart string            `yaml:"classwork_start"`
	ClassworkEnd   string            `yaml:"classwork_end"`
	MidsemStart    string            `yaml:"midsem_start"`
	MidsemEnd      string            `yaml:"midsem_end"`
	Holidays       []string          `yaml:"holidays"`
	DayOverrides   map[string]string `yaml:"day_overrides"`
}

// CoursesConfig selects and corrects the sections taken from the
// registration grid.
type CoursesConfig struct {
	// Whitelist maps course codes to "all" or a list of section codes.
	// A nil whitelist keeps every registered course.
	Whitelist map[string]enroll.SectionFilter `yaml:"whitelist"`
	// Overrides substitutes individual section codes per course.
	Overrides map[string]map[string]string `yaml:"overrides"`
}

// CMSConfig holds the Moodle endpoint and web-service token. A nil
// value disables CMS enrolment.
type CMSConfig struct {
	Address string `yaml:"address"`
	Token   string `yaml:"wstoken"`
}

// GoogleConfig locates the OAuth client credentials and the cached
// token.
type GoogleConfig struct {
	CredentialsPath string `yaml:"credentials"`
	TokenPath       string `yaml:"token"`
}

// Config is the top-level application configuration.
type Config struct {
	// Timezone is the IANA timezone of the campus (e.g. "Asia/Kolkata").
	Timezone string `yaml:"timezone"`
	// Calendar is the name of the target calendar on the service.
	Calendar string `yaml:"calendar"`

	Spreadsheet SpreadsheetConfig `yaml:"spreadsheet"`

	// EventsPath is the tab-separated academic-calendar dump.
	EventsPath string `yaml:"events_file"`
	// CachePath is where the extracted timetable database is cached.
	CachePath string `yaml:"cache_file"`
	// SchedulePath is the ERP weekly-schedule grid dump. Empty means
	// sections come from the whitelist alone.
	SchedulePath string `yaml:"schedule_file"`

	Dates   DatesConfig   `yaml:"dates"`
	Courses CoursesConfig `yaml:"courses"`
	CMS     *CMSConfig    `yaml:"cms,omitempty"`
	Google  GoogleConfig  `yaml:"google"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Timezone: "Asia/Kolkata",
		Calendar: "Timetable",
		Spreadsheet: SpreadsheetConfig{
			Path:       "timetable.xlsx",
			HeaderRows: 2,
			Columns:    timetable.DefaultColumns(),
		},
		EventsPath: "events.txt",
		CachePath:  "timetable.json",
		Google: GoogleConfig{
			CredentialsPath: "credentials.json",
			TokenPath:       "token.json",
		},
	}
}

// Normalize fills missing values with defaults so partially filled
// configs still behave.
func (c *Config) Normalize() {
	if c.Timezone == "" {
		c.Timezone = "Asia/Kolkata"
	}
	if c.Calendar == "" {
		c.Calendar = "Timetable"
	}
	if c.Spreadsheet.HeaderRows <= 0 {
		c.Spreadsheet.HeaderRows = 2
	}
	if c.Spreadsheet.Columns == (timetable.Columns{}) {
		c.Spreadsheet.Columns = timetable.DefaultColumns()
	}
	if c.CachePath == "" {
		c.CachePath = "timetable.json"
	}
	if c.Google.CredentialsPath == "" {
		c.Google.CredentialsPath = "credentials.json"
	}
	if c.Google.TokenPath == "" {
		c.Google.TokenPath = "token.json"
	}
}

// Overrides converts the date strings into the exception-calendar
// override set.
func (d DatesConfig) Overrides() (dates.Overrides, error) {
	ov := dates.Overrides{Semester: d.Semester}

	var err error
	if ov.ClassworkStart, err = parseDate(d.ClassworkStart); err != nil {
		return ov, fmt.Errorf("classwork_start: %w", err)
	}
	if ov.ClassworkEnd, err = parseDate(d.ClassworkEnd); err != nil {
		return ov, fmt.Errorf("classwork_end: %w", err)
	}

	start, err := parseDate(d.MidsemStart)
	if err != nil {
		return ov, fmt.Errorf("midsem_start: %w", err)
	}
	end, err := parseDate(d.MidsemEnd)
	if err != nil {
		return ov, fmt.Errorf("midsem_end: %w", err)
	}
	switch {
	case start.IsZero() != end.IsZero():
		return ov, errors.New("midsem_start and midsem_end must both be set")
	case !start.IsZero():
		ov.Midsem = &dates.Span{Start: start, End: end}
	}

	for _, s := range d.Holidays {
		h, err := parseDate(s)
		if err != nil {
			return ov, fmt.Errorf("holidays: %w", err)
		}
		ov.Holidays = append(ov.Holidays, h)
	}

	if len(d.DayOverrides) > 0 {
		ov.DayOverrides = make(map[time.Time]string, len(d.DayOverrides))
		for s, code := range d.DayOverrides {
			day, err := parseDate(s)
			if err != nil {
				return ov, fmt.Errorf("day_overrides: %w", err)
			}
			ov.DayOverrides[day] = code
		}
	}

	return ov, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}

// Load reads configuration from the given YAML path. A missing file is
// a first run: the default config is written there and returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".ttcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
