package slots

import (
	"fmt"
	"sort"
	"time"
)

// WorkHoursSlack absorbs rounding at working-interval boundaries and between adjacent intervals.
const WorkHoursSlack = time.Minute

// Oracle answers "is user u free during [s, e)" from one snapshot of meetings and working
// intervals. It is built once per query and never touches a collaborator.
type Oracle struct {
	busy    map[string]busyIndex
	working map[string][]Interval
}

// busyIndex keeps meetings sorted by start plus a running maximum of their ends, so an
// overlap test is one binary search.
type busyIndex struct {
	starts []time.Time
	maxEnd []time.Time
}

// NewOracle indexes meetings per attendee. When workHours is set, users with a working
// calendar are restricted to their intervals, which are keyed by employee id and must be
// sorted by start; an unsorted list is an ErrInternalInvariant.
func NewOracle(users []StaffUser, meetings []Meeting, intervals map[string][]Interval, workHours bool, viewer *time.Location) (*Oracle, error) {
	o := &Oracle{
		busy:    make(map[string]busyIndex, len(users)),
		working: map[string][]Interval{},
	}

	eligible := make(map[string]struct{}, len(users))
	for _, u := range users {
		eligible[u.ID] = struct{}{}
	}

	perUser := map[string][]Interval{}
	for _, m := range meetings {
		if m.Cancelled {
			continue
		}
		span, ok := meetingSpan(m, viewer)
		if !ok {
			continue
		}
		for _, id := range m.AttendeeIDs {
			if _, ok := eligible[id]; ok {
				perUser[id] = append(perUser[id], span)
			}
		}
	}
	for id, spans := range perUser {
		o.busy[id] = newBusyIndex(spans)
	}

	if !workHours {
		return o, nil
	}
	for _, u := range users {
		if !u.hasWorkingCalendar() {
			continue
		}
		merged, err := mergeIntervals(intervals[u.Employee.ID])
		if err != nil {
			return nil, fmt.Errorf("employee %s: %w", u.Employee.ID, err)
		}
		o.working[u.ID] = merged
	}
	return o, nil
}

// Free reports whether the user has no blocking meeting and, when restricted, is on duty
// for the whole of [s, e).
func (o *Oracle) Free(userID string, s, e time.Time) bool {
	if !e.After(s) {
		return false
	}
	if idx, ok := o.busy[userID]; ok && idx.overlaps(s, e) {
		return false
	}
	if intervals, restricted := o.working[userID]; restricted {
		return covers(intervals, s, e, WorkHoursSlack)
	}
	return true
}

func newBusyIndex(spans []Interval) busyIndex {
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start.Before(spans[j].Start) })
	idx := busyIndex{
		starts: make([]time.Time, len(spans)),
		maxEnd: make([]time.Time, len(spans)),
	}
	for i, sp := range spans {
		idx.starts[i] = sp.Start
		idx.maxEnd[i] = sp.End
		if i > 0 && idx.maxEnd[i-1].After(sp.End) {
			idx.maxEnd[i] = idx.maxEnd[i-1]
		}
	}
	return idx
}

// overlaps reports whether any span satisfies start < e && end > s.
func (b busyIndex) overlaps(s, e time.Time) bool {
	n := sort.Search(len(b.starts), func(i int) bool { return !b.starts[i].Before(e) })
	return n > 0 && b.maxEnd[n-1].After(s)
}

// meetingSpan returns the blocking range of a meeting. All-day meetings carry their dates at
// UTC midnight and block those whole days in the viewer timezone; an end exactly on midnight
// is exclusive.
func meetingSpan(m Meeting, viewer *time.Location) (Interval, bool) {
	if !m.AllDay {
		if !m.End.After(m.Start) {
			return Interval{}, false
		}
		return Interval{Start: m.Start, End: m.End}, true
	}

	ls := m.Start.UTC()
	le := m.End.UTC()
	start := time.Date(ls.Year(), ls.Month(), ls.Day(), 0, 0, 0, 0, viewer)
	end := time.Date(le.Year(), le.Month(), le.Day(), 0, 0, 0, 0, viewer)
	midnight := le.Hour() == 0 && le.Minute() == 0 && le.Second() == 0 && le.Nanosecond() == 0
	if !midnight || !end.After(start) {
		end = time.Date(le.Year(), le.Month(), le.Day()+1, 0, 0, 0, 0, viewer)
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, true
}

// mergeIntervals drops empty or inverted intervals and merges overlapping or touching ones.
// The input must already be ordered by start.
func mergeIntervals(in []Interval) ([]Interval, error) {
	out := make([]Interval, 0, len(in))
	for i, cur := range in {
		if i > 0 && cur.Start.Before(in[i-1].Start) {
			return nil, fmt.Errorf("%w: working intervals out of order at index %d", ErrInternalInvariant, i)
		}
		if !cur.End.After(cur.Start) {
			continue
		}
		if n := len(out); n > 0 && !cur.Start.After(out[n-1].End) {
			if cur.End.After(out[n-1].End) {
				out[n-1].End = cur.End
			}
			continue
		}
		out = append(out, cur)
	}
	return out, nil
}

// covers finds the last interval starting no later than s+slack and walks forward while the
// gaps between consecutive intervals stay within slack.
func covers(intervals []Interval, s, e time.Time, slack time.Duration) bool {
	limit := s.Add(slack)
	i := sort.Search(len(intervals), func(i int) bool { return intervals[i].Start.After(limit) }) - 1
	if i < 0 {
		return false
	}
	for {
		if !intervals[i].End.Add(slack).Before(e) {
			return true
		}
		if i+1 >= len(intervals) {
			return false
		}
		if intervals[i+1].Start.Sub(intervals[i].End) > slack {
			return false
		}
		i++
	}
}
