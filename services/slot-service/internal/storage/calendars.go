package storage

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

// Attendance is one weekly working block of a resource calendar. Weekday 0 is Monday.
type Attendance struct {
	Weekday  int
	HourFrom float64
	HourTo   float64
}

// Leave is an absence during which the employee is off duty regardless of attendance.
type Leave struct {
	Start time.Time
	End   time.Time
}

type CalendarRepository struct {
	pool *db.Pool
}

func NewCalendarRepository(pool *db.Pool) *CalendarRepository {
	return &CalendarRepository{pool: pool}
}

type employeeCalendar struct {
	calendarID string
	loc        *time.Location
}

// Intervals expands each employee's calendar attendance over [start, end], removes leaves,
// and returns sorted, merged UTC intervals keyed by employee id. Employees without a
// calendar are absent from the map.
func (r *CalendarRepository) Intervals(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string][]slots.Interval, error) {
	out := map[string][]slots.Interval{}
	if len(employeeIDs) == 0 || !end.After(start) {
		return out, nil
	}

	calendars, err := r.employeeCalendars(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}
	if len(calendars) == 0 {
		return out, nil
	}

	calendarIDs := make([]string, 0, len(calendars))
	seen := map[string]bool{}
	for _, c := range calendars {
		if !seen[c.calendarID] {
			seen[c.calendarID] = true
			calendarIDs = append(calendarIDs, c.calendarID)
		}
	}
	attendance, err := r.attendance(ctx, calendarIDs)
	if err != nil {
		return nil, err
	}
	leaves, err := r.leaves(ctx, employeeIDs, start, end)
	if err != nil {
		return nil, err
	}

	for employeeID, c := range calendars {
		out[employeeID] = ExpandWorkingIntervals(attendance[c.calendarID], c.loc, leaves[employeeID], start, end)
	}
	return out, nil
}

func (r *CalendarRepository) employeeCalendars(ctx context.Context, employeeIDs []string) (map[string]employeeCalendar, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT e.id, c.id, c.timezone
		FROM employees e
		JOIN resource_calendars c ON c.id = e.calendar_id
		WHERE e.id = ANY($1)
	`, employeeIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]employeeCalendar{}
	for rows.Next() {
		var employeeID, calendarID, tz string
		if err := rows.Scan(&employeeID, &calendarID, &tz); err != nil {
			return nil, err
		}
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("%w: calendar %s has unknown timezone %q", slots.ErrInternalInvariant, calendarID, tz)
		}
		out[employeeID] = employeeCalendar{calendarID: calendarID, loc: loc}
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *CalendarRepository) attendance(ctx context.Context, calendarIDs []string) (map[string][]Attendance, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT calendar_id, weekday, hour_from, hour_to
		FROM calendar_attendance
		WHERE calendar_id = ANY($1)
		ORDER BY calendar_id, weekday, hour_from
	`, calendarIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]Attendance{}
	for rows.Next() {
		var calendarID string
		var a Attendance
		if err := rows.Scan(&calendarID, &a.Weekday, &a.HourFrom, &a.HourTo); err != nil {
			return nil, err
		}
		out[calendarID] = append(out[calendarID], a)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *CalendarRepository) leaves(ctx context.Context, employeeIDs []string, start, end time.Time) (map[string][]Leave, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT employee_id, start_at, end_at
		FROM employee_leaves
		WHERE employee_id = ANY($1) AND start_at < $3 AND end_at > $2
		ORDER BY employee_id, start_at
	`, employeeIDs, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]Leave{}
	for rows.Next() {
		var employeeID string
		var l Leave
		if err := rows.Scan(&employeeID, &l.Start, &l.End); err != nil {
			return nil, err
		}
		out[employeeID] = append(out[employeeID], l)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ExpandWorkingIntervals turns weekly attendance in loc into concrete UTC intervals clipped
// to [start, end], minus leaves. The result is sorted and touching intervals are merged.
func ExpandWorkingIntervals(attendance []Attendance, loc *time.Location, leaves []Leave, start, end time.Time) []slots.Interval {
	if len(attendance) == 0 || !end.After(start) {
		return nil
	}
	start, end = start.UTC(), end.UTC()

	// Start one local day early so blocks that began the day before the window are kept.
	first := start.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day()-1, 0, 0, 0, 0, loc)
	last := end.In(loc)
	lastDay := time.Date(last.Year(), last.Month(), last.Day(), 0, 0, 0, 0, loc)

	var raw []slots.Interval
	for !day.After(lastDay) {
		weekday := (int(day.Weekday()) + 6) % 7
		for _, a := range attendance {
			if a.Weekday != weekday || a.HourTo <= a.HourFrom {
				continue
			}
			s := wallClock(day, a.HourFrom, loc)
			e := wallClock(day, a.HourTo, loc)
			if s.Before(start) {
				s = start
			}
			if e.After(end) {
				e = end
			}
			if e.After(s) {
				raw = append(raw, slots.Interval{Start: s, End: e})
			}
		}
		day = time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	}

	merged := mergeSorted(raw)
	if len(leaves) == 0 {
		return merged
	}
	var out []slots.Interval
	for _, iv := range merged {
		out = append(out, subtractLeaves(iv, leaves)...)
	}
	return out
}

func wallClock(day time.Time, hour float64, loc *time.Location) time.Time {
	minutes := int(math.Round(hour * 60))
	return time.Date(day.Year(), day.Month(), day.Day(), 0, minutes, 0, 0, loc).UTC()
}

func mergeSorted(in []slots.Interval) []slots.Interval {
	if len(in) == 0 {
		return nil
	}
	sort.Slice(in, func(i, j int) bool {
		if in[i].Start.Equal(in[j].Start) {
			return in[i].End.Before(in[j].End)
		}
		return in[i].Start.Before(in[j].Start)
	})
	out := []slots.Interval{in[0]}
	for _, cur := range in[1:] {
		last := &out[len(out)-1]
		if cur.Start.After(last.End) {
			out = append(out, cur)
			continue
		}
		if cur.End.After(last.End) {
			last.End = cur.End
		}
	}
	return out
}

// subtractLeaves removes every leave from base and returns the remaining pieces in order.
func subtractLeaves(base slots.Interval, leaves []Leave) []slots.Interval {
	var blocks []slots.Interval
	for _, l := range leaves {
		s, e := l.Start.UTC(), l.End.UTC()
		if !e.After(base.Start) || !s.Before(base.End) {
			continue
		}
		if s.Before(base.Start) {
			s = base.Start
		}
		if e.After(base.End) {
			e = base.End
		}
		blocks = append(blocks, slots.Interval{Start: s, End: e})
	}
	if len(blocks) == 0 {
		return []slots.Interval{base}
	}

	var out []slots.Interval
	cursor := base.Start
	for _, b := range mergeSorted(blocks) {
		if b.Start.After(cursor) {
			out = append(out, slots.Interval{Start: cursor, End: b.Start})
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if base.End.After(cursor) {
		out = append(out, slots.Interval{Start: cursor, End: base.End})
	}
	return out
}
