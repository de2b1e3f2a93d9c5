// Package gcal pushes synthesized event payloads to Google Calendar.
// Authentication follows the installed-app flow with a cached token
// file next to the OAuth client credentials.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"ttcal/internal/events"
	"ttcal/internal/fuzzy"
	applog "ttcal/internal/log"
)

// matchThreshold governs both calendar-name lookup and duplicate-event
// detection.
const matchThreshold = 0.8

// Client wraps the Calendar API service.
type Client struct {
	svc *calendar.Service
}

// New builds an authenticated client. The token file is created on
// first run after an interactive consent prompt and silently reused
// afterwards.
func New(ctx context.Context, credentialsPath, tokenPath string) (*Client, error) {
	raw, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read oauth credentials: %w", err)
	}
	cfg, err := google.ConfigFromJSON(raw, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth credentials: %w", err)
	}

	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		tok, err = tokenFromPrompt(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenPath, tok); err != nil {
			applog.Warn("token not cached", "path", tokenPath, "reason", err)
		}
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(cfg.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("build calendar service: %w", err)
	}
	return &Client{svc: svc}, nil
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	return tok, json.NewDecoder(f).Decode(tok)
}

func tokenFromPrompt(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	url := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%s\n> ", url)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

func saveToken(path string, tok *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(tok)
}

// EnsureCalendar returns the id of the calendar whose name fuzzily
// matches, creating it when none does. Matching tolerates the service
// decorating names the user typed slightly differently.
func (c *Client) EnsureCalendar(ctx context.Context, name, timezone string) (string, error) {
	list, err := c.svc.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("list calendars: %w", err)
	}
	for _, entry := range list.Items {
		if fuzzy.Ratio(name, entry.Summary) > matchThreshold {
			return entry.Id, nil
		}
	}

	created, err := c.svc.Calendars.Insert(&calendar.Calendar{
		Summary:  name,
		TimeZone: timezone,
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("create calendar %q: %w", name, err)
	}
	applog.Info("calendar created", "name", name, "id", created.Id)
	return created.Id, nil
}

// ClearCalendar deletes every event on the calendar, page by page.
func (c *Client) ClearCalendar(ctx context.Context, calendarID string) error {
	deleted := 0
	pageToken := ""
	for {
		page, err := c.svc.Events.List(calendarID).PageToken(pageToken).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("list events: %w", err)
		}
		for _, ev := range page.Items {
			if err := c.svc.Events.Delete(calendarID, ev.Id).Context(ctx).Do(); err != nil {
				return fmt.Errorf("delete event %s: %w", ev.Id, err)
			}
			deleted++
		}
		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}
	applog.Info("calendar cleared", "calendar", calendarID, "deleted", deleted)
	return nil
}

// CreateEvent inserts one payload.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, p events.Payload) error {
	ev := eventFromPayload(p)
	if _, err := c.svc.Events.Insert(calendarID, ev).Context(ctx).Do(); err != nil {
		return fmt.Errorf("insert event %q: %w", p.Title, err)
	}
	applog.Debug("event created", "title", p.Title, "start", p.Start)
	return nil
}

// EventExists reports whether an event fuzzily matching the payload's
// title and location is already on the calendar, so reruns skip instead
// of duplicating.
func (c *Client) EventExists(ctx context.Context, calendarID string, p events.Payload) (bool, error) {
	target := map[string]any{"summary": p.Title, "location": p.Location}
	fields := []string{"summary", "location"}

	pageToken := ""
	for {
		page, err := c.svc.Events.List(calendarID).PageToken(pageToken).Context(ctx).Do()
		if err != nil {
			return false, fmt.Errorf("list events: %w", err)
		}
		candidates := make([]map[string]any, 0, len(page.Items))
		for _, ev := range page.Items {
			candidates = append(candidates, map[string]any{
				"summary":  ev.Summary,
				"location": ev.Location,
			})
		}
		if _, ok := fuzzy.FindBestMatch(target, candidates, fields, matchThreshold); ok {
			return true, nil
		}
		pageToken = page.NextPageToken
		if pageToken == "" {
			return false, nil
		}
	}
}

// eventFromPayload translates a payload into the wire representation.
func eventFromPayload(p events.Payload) *calendar.Event {
	ev := &calendar.Event{
		Summary:     p.Title,
		Description: p.Description,
		Location:    p.Location,
		ColorId:     p.ColorID,
		Start: &calendar.EventDateTime{
			DateTime: p.Start.Format(time.RFC3339),
			TimeZone: p.TimeZone,
		},
		End: &calendar.EventDateTime{
			DateTime: p.End.Format(time.RFC3339),
			TimeZone: p.TimeZone,
		},
		Recurrence: p.Recurrence(),
	}
	if p.ReminderMinutes > 0 {
		ev.Reminders = &calendar.EventReminders{
			UseDefault: false,
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: int64(p.ReminderMinutes)},
			},
			ForceSendFields: []string{"UseDefault"},
		}
	}
	return ev
}
