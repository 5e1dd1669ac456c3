package storage

import (
	"context"

	"github.com/md-rashed-zaman/apptslots/libs/db"
)

type StaffRepository struct {
	pool *db.Pool
}

func NewStaffRepository(pool *db.Pool) *StaffRepository {
	return &StaffRepository{pool: pool}
}

// GoogleCalendarIDs maps staff user ids to their linked Google calendar. Users without a
// linked calendar are absent from the result.
func (r *StaffRepository) GoogleCalendarIDs(ctx context.Context, userIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, google_calendar_id
		FROM staff_users
		WHERE id = ANY($1) AND google_calendar_id <> ''
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, calendarID string
		if err := rows.Scan(&id, &calendarID); err != nil {
			return nil, err
		}
		out[id] = calendarID
	}
	return out, rows.Err()
}
