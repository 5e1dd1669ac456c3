package slots

import (
	"errors"
	"testing"
	"time"
)

func mon(h, m, s int) time.Time {
	return time.Date(2022, 2, 14, h, m, s, 0, time.UTC)
}

func TestCovers_SlackAtEndpoints(t *testing.T) {
	intervals := []Interval{{Start: mon(9, 0, 30), End: mon(9, 59, 30)}}
	if !covers(intervals, mon(9, 0, 0), mon(10, 0, 0), WorkHoursSlack) {
		t.Fatalf("expected 09:00-10:00 to be covered within slack")
	}
	if covers(intervals, mon(8, 58, 0), mon(9, 30, 0), WorkHoursSlack) {
		t.Fatalf("expected 08:58 start to be outside slack")
	}
}

func TestCovers_GapWithinSlackIsBridged(t *testing.T) {
	intervals := []Interval{
		{Start: mon(9, 0, 0), End: mon(12, 0, 0)},
		{Start: mon(12, 0, 30), End: mon(17, 0, 0)},
	}
	if !covers(intervals, mon(11, 30, 0), mon(12, 30, 0), WorkHoursSlack) {
		t.Fatalf("expected 30s gap to be bridged")
	}
}

func TestCovers_GapBeyondSlackBreaksCoverage(t *testing.T) {
	intervals := []Interval{
		{Start: mon(9, 0, 0), End: mon(12, 0, 0)},
		{Start: mon(13, 0, 0), End: mon(17, 0, 0)},
	}
	if covers(intervals, mon(12, 0, 0), mon(13, 0, 0), WorkHoursSlack) {
		t.Fatalf("expected slot straddling lunch gap to be uncovered")
	}
	if !covers(intervals, mon(13, 0, 0), mon(14, 0, 0), WorkHoursSlack) {
		t.Fatalf("expected 13:00-14:00 to be covered")
	}
	if covers(intervals, mon(8, 0, 0), mon(9, 0, 0), WorkHoursSlack) {
		t.Fatalf("expected 08:00-09:00 to be uncovered")
	}
	if covers(nil, mon(9, 0, 0), mon(10, 0, 0), WorkHoursSlack) {
		t.Fatalf("expected empty interval list to cover nothing")
	}
}

func TestMergeIntervals(t *testing.T) {
	merged, err := mergeIntervals([]Interval{
		{Start: mon(9, 0, 0), End: mon(10, 0, 0)},
		{Start: mon(9, 30, 0), End: mon(11, 0, 0)},
		{Start: mon(11, 0, 0), End: mon(11, 0, 0)},
		{Start: mon(11, 0, 0), End: mon(12, 0, 0)},
		{Start: mon(14, 0, 0), End: mon(13, 0, 0)},
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged) != 1 {
		t.Fatalf("expected 1 merged interval, got %d: %+v", len(merged), merged)
	}
	if !merged[0].Start.Equal(mon(9, 0, 0)) || !merged[0].End.Equal(mon(12, 0, 0)) {
		t.Fatalf("unexpected merged interval %+v", merged[0])
	}

	_, err = mergeIntervals([]Interval{
		{Start: mon(13, 0, 0), End: mon(14, 0, 0)},
		{Start: mon(9, 0, 0), End: mon(10, 0, 0)},
	})
	if !errors.Is(err, ErrInternalInvariant) {
		t.Fatalf("expected ErrInternalInvariant, got %v", err)
	}
}

func TestOracle_MeetingsBlockOnlyAttendees(t *testing.T) {
	users := []StaffUser{{ID: "u1"}, {ID: "u2"}}
	meetings := []Meeting{
		{ID: "m1", Start: mon(9, 0, 0), End: mon(10, 0, 0), AttendeeIDs: []string{"u1"}},
		{ID: "m2", Start: mon(11, 0, 0), End: mon(12, 0, 0), AttendeeIDs: []string{"u1", "u2"}, Cancelled: true},
		{ID: "m3", Start: mon(8, 0, 0), End: mon(15, 0, 0), AttendeeIDs: []string{"outsider"}},
	}
	o, err := NewOracle(users, meetings, nil, false, time.UTC)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	if o.Free("u1", mon(9, 0, 0), mon(10, 0, 0)) {
		t.Fatalf("expected u1 busy at 09:00")
	}
	if !o.Free("u1", mon(10, 0, 0), mon(11, 0, 0)) {
		t.Fatalf("expected u1 free at 10:00 (touching end)")
	}
	if !o.Free("u1", mon(8, 0, 0), mon(9, 0, 0)) {
		t.Fatalf("expected u1 free at 08:00 (touching start)")
	}
	if !o.Free("u2", mon(9, 0, 0), mon(10, 0, 0)) {
		t.Fatalf("expected u2 free at 09:00")
	}
	if !o.Free("u1", mon(11, 0, 0), mon(12, 0, 0)) {
		t.Fatalf("expected cancelled meeting not to block")
	}
}

func TestOracle_LongMeetingBehindShortOnes(t *testing.T) {
	users := []StaffUser{{ID: "u1"}}
	meetings := []Meeting{
		{Start: mon(8, 0, 0), End: mon(18, 0, 0), AttendeeIDs: []string{"u1"}},
		{Start: mon(9, 0, 0), End: mon(9, 15, 0), AttendeeIDs: []string{"u1"}},
	}
	o, err := NewOracle(users, meetings, nil, false, time.UTC)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	if o.Free("u1", mon(14, 0, 0), mon(15, 0, 0)) {
		t.Fatalf("expected the 08:00-18:00 meeting to block 14:00")
	}
}

func TestOracle_AllDayMeetingUsesViewerDay(t *testing.T) {
	brussels := mustLoad(t, "Europe/Brussels")
	users := []StaffUser{{ID: "u1"}}
	meetings := []Meeting{{
		Start:       time.Date(2022, 2, 14, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2022, 2, 14, 0, 0, 0, 0, time.UTC),
		AllDay:      true,
		AttendeeIDs: []string{"u1"},
	}}
	o, err := NewOracle(users, meetings, nil, false, brussels)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	// Brussels day 2022-02-14 is 2022-02-13T23:00Z .. 2022-02-14T23:00Z.
	if o.Free("u1", time.Date(2022, 2, 14, 22, 0, 0, 0, time.UTC), time.Date(2022, 2, 14, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected last hour of the local day to be blocked")
	}
	if !o.Free("u1", time.Date(2022, 2, 14, 23, 0, 0, 0, time.UTC), time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected next local day to be free")
	}
	if !o.Free("u1", time.Date(2022, 2, 13, 22, 0, 0, 0, time.UTC), time.Date(2022, 2, 13, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected previous local day to be free")
	}
}

func TestOracle_WorkHoursOnlyForCalendarUsers(t *testing.T) {
	users := []StaffUser{
		{ID: "with-calendar", Employee: &Employee{ID: "e1", CalendarID: "cal"}},
		{ID: "no-calendar", Employee: &Employee{ID: "e2"}},
		{ID: "no-employee"},
	}
	intervals := map[string][]Interval{
		"e1": {{Start: mon(9, 0, 0), End: mon(12, 0, 0)}},
		"e2": {{Start: mon(9, 0, 0), End: mon(10, 0, 0)}},
	}
	o, err := NewOracle(users, nil, intervals, true, time.UTC)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	if o.Free("with-calendar", mon(8, 0, 0), mon(9, 0, 0)) {
		t.Fatalf("expected restriction for calendar user")
	}
	if !o.Free("with-calendar", mon(10, 0, 0), mon(11, 0, 0)) {
		t.Fatalf("expected calendar user free inside working hours")
	}
	if !o.Free("no-calendar", mon(8, 0, 0), mon(9, 0, 0)) {
		t.Fatalf("expected no restriction without a calendar")
	}
	if !o.Free("no-employee", mon(20, 0, 0), mon(21, 0, 0)) {
		t.Fatalf("expected no restriction without an employee")
	}
}

func TestOracle_CalendarUserWithoutIntervalsIsUnavailable(t *testing.T) {
	users := []StaffUser{{ID: "u1", Employee: &Employee{ID: "e1", CalendarID: "cal"}}}
	o, err := NewOracle(users, nil, map[string][]Interval{
		"e1": {{Start: mon(12, 0, 0), End: mon(9, 0, 0)}},
	}, true, time.UTC)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}
	if o.Free("u1", mon(9, 0, 0), mon(10, 0, 0)) {
		t.Fatalf("expected malformed interval to give no coverage")
	}
}

func TestOracle_AllDayMeetingWestOfUTC(t *testing.T) {
	newYork := mustLoad(t, "America/New_York")
	users := []StaffUser{{ID: "u1"}}
	meetings := []Meeting{{
		Start:       time.Date(2022, 2, 14, 0, 0, 0, 0, time.UTC),
		End:         time.Date(2022, 2, 15, 0, 0, 0, 0, time.UTC),
		AllDay:      true,
		AttendeeIDs: []string{"u1"},
	}}
	o, err := NewOracle(users, meetings, nil, false, newYork)
	if err != nil {
		t.Fatalf("new oracle: %v", err)
	}

	// New York day 2022-02-14 is 2022-02-14T05:00Z .. 2022-02-15T05:00Z; the end date is exclusive.
	if o.Free("u1", time.Date(2022, 2, 14, 14, 0, 0, 0, time.UTC), time.Date(2022, 2, 14, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected the local day to be blocked")
	}
	if !o.Free("u1", time.Date(2022, 2, 14, 3, 0, 0, 0, time.UTC), time.Date(2022, 2, 14, 4, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected the previous local evening to be free")
	}
	if !o.Free("u1", time.Date(2022, 2, 15, 5, 0, 0, 0, time.UTC), time.Date(2022, 2, 15, 6, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected the next local day to be free")
	}
}
