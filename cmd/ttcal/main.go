package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"ttcal/internal/cms"
	"ttcal/internal/config"
	"ttcal/internal/dates"
	"ttcal/internal/enroll"
	"ttcal/internal/erp"
	"ttcal/internal/events"
	"ttcal/internal/gcal"
	"ttcal/internal/ics"
	appLog "ttcal/internal/log"
	"ttcal/internal/schedule"
	"ttcal/internal/timetable"
)

type flagConfig struct {
	configPath string
	icsPath    string
	refresh    bool
	clear      bool
	skipEnrol  bool
	enrolOnly  bool
}

func main() {
	appLog.Info("ttcal starting", "version", "0.1.0-dev")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"timezone", conf.Timezone,
		"calendar", conf.Calendar,
		"spreadsheet", conf.Spreadsheet.Path,
		"events_file", conf.EventsPath,
		"schedule_file", conf.SchedulePath,
		"cms", conf.CMS != nil,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if err := run(ctx, conf, flags); err != nil {
		appLog.Error("run failed", err)
		os.Exit(1)
	}
	appLog.Info("ttcal done")
}

func run(ctx context.Context, conf *config.Config, flags flagConfig) error {
	ref := time.Now()

	db, err := loadTimetable(conf, flags.refresh)
	if err != nil {
		return err
	}

	selected, err := selectSections(conf, db)
	if err != nil {
		return err
	}
	if len(selected) == 0 {
		return errors.New("no courses selected: provide a schedule_file or a courses whitelist")
	}

	if flags.enrolOnly {
		return runEnrol(ctx, conf, selected)
	}

	cal, err := buildCalendar(conf, ref)
	if err != nil {
		return err
	}

	payloads := buildPayloads(conf, db, selected, cal, ref)
	appLog.Info("events synthesized", "count", len(payloads))

	if flags.icsPath != "" {
		if err := ics.ExportFile(flags.icsPath, payloads); err != nil {
			return err
		}
	} else if err := syncCalendar(ctx, conf, payloads, flags.clear); err != nil {
		return err
	}

	if flags.skipEnrol || conf.CMS == nil {
		return nil
	}
	return runEnrol(ctx, conf, selected)
}

// loadTimetable prefers the extraction cache; the spreadsheet is only
// parsed on the first run or on -refresh.
func loadTimetable(conf *config.Config, refresh bool) (timetable.DB, error) {
	if !refresh {
		db, err := timetable.LoadCache(conf.CachePath)
		if err == nil {
			appLog.Info("timetable cache loaded", "path", conf.CachePath, "courses", len(db))
			return db, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("timetable cache unreadable, re-extracting", "path", conf.CachePath, "reason", err)
		}
	}

	db, err := timetable.ExtractFile(conf.Spreadsheet.Path, conf.Spreadsheet.Columns, conf.Spreadsheet.HeaderRows)
	if err != nil {
		return nil, err
	}
	if err := timetable.SaveCache(conf.CachePath, db); err != nil {
		appLog.Warn("timetable cache not written", "path", conf.CachePath, "reason", err)
	}
	return db, nil
}

// selectSections decides which sections of which courses to synthesize:
// the ERP schedule grid when configured, otherwise the whitelist
// resolved against the timetable itself. Whitelist and overrides apply
// in that order either way.
func selectSections(conf *config.Config, db timetable.DB) (map[string][]string, error) {
	var reg map[string][]string

	if conf.SchedulePath != "" {
		var err error
		reg, err = erp.ParseWeeklyGridFile(conf.SchedulePath)
		if err != nil {
			return nil, err
		}
	} else {
		reg = map[string][]string{}
		for code := range conf.Courses.Whitelist {
			course, ok := db[code]
			if !ok {
				continue // ApplyWhitelist logs the mismatch
			}
			secs := make([]string, 0, len(course.Sections))
			for sc := range course.Sections {
				secs = append(secs, sc)
			}
			sort.Strings(secs)
			reg[code] = secs
		}
	}

	selected := enroll.ApplyWhitelist(reg, conf.Courses.Whitelist)
	return enroll.ApplyOverrides(selected, conf.Courses.Overrides), nil
}

// buildCalendar parses the academic-calendar events table and derives
// the semester's exception calendar from it.
func buildCalendar(conf *config.Config, ref time.Time) (*dates.Calendar, error) {
	ov, err := conf.Dates.Overrides()
	if err != nil {
		return nil, fmt.Errorf("dates config: %w", err)
	}

	var table dates.Table
	if conf.EventsPath != "" {
		f, err := os.Open(conf.EventsPath)
		if err != nil {
			return nil, fmt.Errorf("open events file: %w", err)
		}
		defer f.Close()
		if table, err = dates.ParseTable(f, ref); err != nil {
			return nil, fmt.Errorf("parse events file: %w", err)
		}
	}

	cal, err := dates.Build(table, ov, ref)
	if err != nil {
		return nil, err
	}
	appLog.Info("exception calendar built",
		"first_workday", cal.FirstWorkday.Format(time.DateOnly),
		"last_workday", cal.LastWorkday.Format(time.DateOnly),
		"holidays", len(cal.Holidays),
		"day_overrides", len(cal.DayOverrides),
	)
	return cal, nil
}

func buildPayloads(conf *config.Config, db timetable.DB, selected map[string][]string, cal *dates.Calendar, ref time.Time) []events.Payload {
	synth := &events.Synthesizer{Cal: cal, TimeZone: conf.Timezone}

	codes := make([]string, 0, len(selected))
	for code := range selected {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var payloads []events.Payload
	for _, code := range codes {
		course, ok := db[code]
		if !ok {
			appLog.Warn("course not in timetable", "course", code)
			continue
		}
		resolved := schedule.ResolveCourse(code, course, selected[code], cal.FirstWorkday, ref)
		payloads = append(payloads, synth.CourseEvents(resolved)...)
	}
	return payloads
}

func syncCalendar(ctx context.Context, conf *config.Config, payloads []events.Payload, clear bool) error {
	client, err := gcal.New(ctx, conf.Google.CredentialsPath, conf.Google.TokenPath)
	if err != nil {
		return err
	}

	calendarID, err := client.EnsureCalendar(ctx, conf.Calendar, conf.Timezone)
	if err != nil {
		return err
	}
	if clear {
		if err := client.ClearCalendar(ctx, calendarID); err != nil {
			return err
		}
	}

	created := 0
	for _, p := range payloads {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		exists, err := client.EventExists(ctx, calendarID, p)
		if err != nil {
			return err
		}
		if exists {
			appLog.Debug("event already on calendar", "title", p.Title)
			continue
		}
		if err := client.CreateEvent(ctx, calendarID, p); err != nil {
			return err
		}
		created++
	}
	appLog.Info("calendar synced", "calendar", conf.Calendar, "created", created, "total", len(payloads))
	return nil
}

func runEnrol(ctx context.Context, conf *config.Config, selected map[string][]string) error {
	if conf.CMS == nil {
		return errors.New("cms is not configured")
	}
	client := cms.New("https://"+conf.CMS.Address+"/moodle", conf.CMS.Token)
	return enroll.EnrolAll(ctx, client, selected)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "config.yaml", "Path to config file")
	flag.StringVar(&cfg.icsPath, "ics", "", "Export events to an ICS file instead of Google Calendar")
	flag.BoolVar(&cfg.refresh, "refresh", false, "Re-extract the spreadsheet even when a cache exists")
	flag.BoolVar(&cfg.clear, "clear", false, "Clear the target calendar before creating events")
	flag.BoolVar(&cfg.skipEnrol, "skip-enrol", false, "Do not enrol in CMS courses")
	flag.BoolVar(&cfg.enrolOnly, "enrol-only", false, "Only enrol in CMS courses, do not touch calendars")

	flag.Parse()

	return cfg
}
