package storage

import (
	"context"
	"time"

	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

// allDayMargin widens the query so all-day meetings, stored at UTC midnight, are found for
// viewers on either side of UTC.
const allDayMargin = 24 * time.Hour

type MeetingRepository struct {
	pool *db.Pool
}

func NewMeetingRepository(pool *db.Pool) *MeetingRepository {
	return &MeetingRepository{pool: pool}
}

// Query returns non-cancelled meetings touching [start, end] that have at least one of
// userIDs as attendee. Attendee lists are complete, not filtered to userIDs.
func (r *MeetingRepository) Query(ctx context.Context, userIDs []string, start, end time.Time) ([]slots.Meeting, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.start_at, m.end_at, m.all_day, array_agg(a.staff_user_id ORDER BY a.staff_user_id)
		FROM meetings m
		JOIN meeting_attendees a ON a.meeting_id = m.id
		WHERE NOT m.cancelled
			AND m.start_at <= $3
			AND m.end_at >= $2
			AND EXISTS (
				SELECT 1 FROM meeting_attendees x
				WHERE x.meeting_id = m.id AND x.staff_user_id = ANY($1)
			)
		GROUP BY m.id
		ORDER BY m.start_at, m.id
	`, userIDs, start.UTC().Add(-allDayMargin), end.UTC().Add(allDayMargin))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []slots.Meeting
	for rows.Next() {
		var m slots.Meeting
		if err := rows.Scan(&m.ID, &m.Start, &m.End, &m.AllDay, &m.AttendeeIDs); err != nil {
			return nil, err
		}
		m.Start, m.End = m.Start.UTC(), m.End.UTC()
		out = append(out, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
