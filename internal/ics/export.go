// Package ics serializes synthesized event payloads to an iCalendar
// file, the offline alternative to pushing events at a calendar
// service.
package ics

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"ttcal/internal/events"
	applog "ttcal/internal/log"
)

const stampLayout = "20060102T150405"

// Export writes the payloads as a VCALENDAR stream.
func Export(w io.Writer, payloads []events.Payload) error {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//ttcal//timetable events//EN")

	for _, p := range payloads {
		addEvent(cal, p)
	}

	return cal.SerializeTo(w)
}

// ExportFile writes the payloads to path, truncating any previous
// export.
func ExportFile(path string, payloads []events.Payload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create ics file: %w", err)
	}
	defer f.Close()

	if err := Export(f, payloads); err != nil {
		return err
	}
	applog.Info("ics exported", "path", path, "events", len(payloads))
	return f.Close()
}

func addEvent(cal *ical.Calendar, p events.Payload) {
	ev := cal.AddEvent(eventUID(p))
	ev.SetDtStampTime(time.Now().UTC())
	ev.SetSummary(p.Title)
	if p.Description != "" {
		ev.SetDescription(p.Description)
	}
	if p.Location != "" {
		ev.SetLocation(p.Location)
	}

	tz := &ical.KeyValues{Key: "TZID", Value: []string{p.TimeZone}}
	ev.SetProperty(ical.ComponentPropertyDtStart, p.Start.Format(stampLayout), tz)
	ev.SetProperty(ical.ComponentPropertyDtEnd, p.End.Format(stampLayout), tz)

	if p.RRule != "" {
		ev.AddRrule(p.RRule)
	}
	if len(p.IncludeDates) > 0 {
		ev.SetProperty(ical.ComponentPropertyRdate, joinStamps(p.IncludeDates), tz)
	}
	if len(p.ExcludeDates) > 0 {
		ev.SetProperty(ical.ComponentPropertyExdate, joinStamps(p.ExcludeDates), tz)
	}

	if p.ReminderMinutes > 0 {
		alarm := ev.AddAlarm()
		alarm.SetAction(ical.ActionDisplay)
		alarm.SetTrigger(fmt.Sprintf("-PT%dM", p.ReminderMinutes))
	}
}

// eventUID derives a stable UID so re-exports update rather than
// duplicate events in consuming calendars.
func eventUID(p events.Payload) string {
	slug := strings.ToLower(strings.ReplaceAll(p.Title, " ", "-"))
	return fmt.Sprintf("%s-%d@ttcal", slug, p.Start.Unix())
}

func joinStamps(tt []time.Time) string {
	parts := make([]string, 0, len(tt))
	for _, t := range tt {
		parts = append(parts, t.Format(stampLayout))
	}
	return strings.Join(parts, ",")
}
