package slots

import (
	"context"
	"time"
)

type AppointmentTypeStore interface {
	// Get returns the type with its templates and staff, or an error wrapping ErrNotFound.
	Get(ctx context.Context, id string) (AppointmentType, error)
}

type MeetingStore interface {
	// Query returns every non-cancelled meeting overlapping [start, end] that has one of
	// userIDs among its attendees.
	Query(ctx context.Context, userIDs []string, start, end time.Time) ([]Meeting, error)
}

type WorkingCalendarProvider interface {
	// Intervals returns, per employee id, sorted non-overlapping UTC working intervals
	// inside [start, end].
	Intervals(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string][]Interval, error)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = systemClock{}

// MeetingStores queries several meeting sources and concatenates their results.
type MeetingStores []MeetingStore

func (ms MeetingStores) Query(ctx context.Context, userIDs []string, start, end time.Time) ([]Meeting, error) {
	var out []Meeting
	for _, s := range ms {
		if s == nil {
			continue
		}
		got, err := s.Query(ctx, userIDs, start, end)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}
