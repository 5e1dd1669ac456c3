package gcal

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// allDayMargin mirrors the Postgres meeting store so all-day events are found for viewers on
// either side of UTC.
const allDayMargin = 24 * time.Hour

type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

type CalendarIDSource interface {
	GoogleCalendarIDs(ctx context.Context, userIDs []string) (map[string]string, error)
}

// Store reads busy time from the staff users' Google calendars and reports it as meetings.
type Store struct {
	events *calendar.EventsService
	ids    CalendarIDSource
	logger *slog.Logger
}

// New builds a read-only Calendar client authorized with a long-lived refresh token.
func New(ctx context.Context, cfg Config, ids CalendarIDSource, logger *slog.Logger) (*Store, error) {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarReadonlyScope},
	}
	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport), Timeout: 15 * time.Second}
	ts := oc.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, base), &oauth2.Token{RefreshToken: cfg.RefreshToken})

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(&http.Client{
		Transport: &oauth2.Transport{Source: ts, Base: base.Transport},
		Timeout:   base.Timeout,
	}))
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	return &Store{events: svc.Events, ids: ids, logger: logger}, nil
}

// Query lists events of every linked calendar between start and end. Each event is attributed
// to the owning staff user only.
func (s *Store) Query(ctx context.Context, userIDs []string, start, end time.Time) ([]slots.Meeting, error) {
	calendars, err := s.ids.GoogleCalendarIDs(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("google calendar ids: %w", err)
	}
	users := make([]string, 0, len(calendars))
	for id := range calendars {
		users = append(users, id)
	}
	sort.Strings(users)

	var out []slots.Meeting
	for _, userID := range users {
		calendarID := calendars[userID]
		call := s.events.List(calendarID).
			SingleEvents(true).
			ShowDeleted(false).
			TimeMin(start.Add(-allDayMargin).UTC().Format(time.RFC3339)).
			TimeMax(end.Add(allDayMargin).UTC().Format(time.RFC3339)).
			MaxResults(250)
		err := call.Pages(ctx, func(page *calendar.Events) error {
			for _, ev := range page.Items {
				if m, ok := toMeeting(userID, ev); ok {
					out = append(out, m)
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("list events of %s: %w", calendarID, err)
		}
	}
	s.logger.Debug("google calendar meetings loaded", "users", len(users), "meetings", len(out))
	return out, nil
}

// toMeeting converts a calendar event. Transparent events do not block time and events
// without a usable start or end are dropped.
func toMeeting(userID string, ev *calendar.Event) (slots.Meeting, bool) {
	if ev == nil || ev.Start == nil || ev.End == nil || ev.Transparency == "transparent" {
		return slots.Meeting{}, false
	}
	m := slots.Meeting{
		ID:          "gcal:" + ev.Id,
		AttendeeIDs: []string{userID},
		Cancelled:   ev.Status == "cancelled",
	}

	var err error
	if ev.Start.Date != "" {
		m.AllDay = true
		if m.Start, err = time.Parse(time.DateOnly, ev.Start.Date); err != nil {
			return slots.Meeting{}, false
		}
		if m.End, err = time.Parse(time.DateOnly, ev.End.Date); err != nil {
			return slots.Meeting{}, false
		}
		return m, true
	}

	if m.Start, err = time.Parse(time.RFC3339, ev.Start.DateTime); err != nil {
		return slots.Meeting{}, false
	}
	if m.End, err = time.Parse(time.RFC3339, ev.End.DateTime); err != nil {
		return slots.Meeting{}, false
	}
	m.Start, m.End = m.Start.UTC(), m.End.UTC()
	return m, true
}
