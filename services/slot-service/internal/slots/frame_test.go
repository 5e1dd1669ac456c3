package slots

import (
	"testing"
	"time"
)

func TestBuildFrame_WeeksStartMondayAndPad(t *testing.T) {
	brussels := mustLoad(t, "Europe/Brussels")
	w := Window{
		Start:      time.Date(2022, 3, 10, 9, 0, 0, 0, time.UTC),
		HorizonEnd: time.Date(2022, 3, 30, 9, 0, 0, 0, time.UTC),
	}

	months := BuildFrame(w, brussels)
	if len(months) != 1 {
		t.Fatalf("expected 1 month, got %d", len(months))
	}
	m := months[0]
	if m.Label != "March 2022" {
		t.Fatalf("unexpected label %q", m.Label)
	}
	if len(m.Weeks) != 5 {
		t.Fatalf("expected 5 weeks, got %d", len(m.Weeks))
	}

	first := m.Weeks[0].Days[0]
	if first.Date != "2022-02-28" || first.InRange {
		t.Fatalf("expected padding day 2022-02-28, got %+v", first)
	}
	if d := m.Weeks[0].Days[1]; d.Date != "2022-03-01" || !d.InRange {
		t.Fatalf("expected in-range 2022-03-01, got %+v", d)
	}
	last := m.Weeks[4].Days[6]
	if last.Date != "2022-04-03" || last.InRange {
		t.Fatalf("expected padding day 2022-04-03, got %+v", last)
	}

	// Consecutive civil dates across the 2022-03-27 DST change.
	var prev time.Time
	for wi, week := range m.Weeks {
		if len(week.Days) != 7 {
			t.Fatalf("week %d has %d days", wi, len(week.Days))
		}
		for di, d := range week.Days {
			cur, err := time.Parse(dateLayout, d.Date)
			if err != nil {
				t.Fatalf("parse %q: %v", d.Date, err)
			}
			if di == 0 && cur.Weekday() != time.Monday {
				t.Fatalf("week %d starts on %s", wi, cur.Weekday())
			}
			if !prev.IsZero() && !cur.Equal(prev.AddDate(0, 0, 1)) {
				t.Fatalf("expected %s after %s", prev.AddDate(0, 0, 1).Format(dateLayout), d.Date)
			}
			prev = cur
		}
	}
}

func TestBuildFrame_SpansMonths(t *testing.T) {
	w := Window{
		Start:      time.Date(2022, 1, 25, 0, 0, 0, 0, time.UTC),
		HorizonEnd: time.Date(2022, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	months := BuildFrame(w, time.UTC)
	if len(months) != 3 {
		t.Fatalf("expected 3 months, got %d", len(months))
	}
	if months[0].Month != 1 || months[2].Month != 3 {
		t.Fatalf("unexpected months %d..%d", months[0].Month, months[2].Month)
	}
}
