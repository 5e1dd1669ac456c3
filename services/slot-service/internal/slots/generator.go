package slots

import (
	"math"
	"sort"
	"time"
)

// GenerateSlots expands the weekly templates of at into concrete UTC slots fully inside
// [start, end]. Local wall-clock starts that do not exist in loc are skipped; ambiguous ones
// are emitted once.
func GenerateSlots(at AppointmentType, loc *time.Location, start, end time.Time) []Slot {
	duration := at.Duration()
	if duration <= 0 || !end.After(start) {
		return nil
	}
	durMin := int(duration / time.Minute)

	byWeekday := make(map[int][]SlotTemplate, 7)
	for _, tpl := range at.effectiveTemplates() {
		byWeekday[tpl.Weekday] = append(byWeekday[tpl.Weekday], tpl)
	}

	first := civilDate(start.In(loc))
	last := civilDate(end.In(loc))

	var out []Slot
	seen := map[int64]struct{}{}
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		for _, tpl := range byWeekday[mondayWeekday(d.Weekday())] {
			fromMin := hourToMinute(tpl.StartHour)
			toMin := hourToMinute(tpl.EndHour)
			for m := fromMin; m+durMin <= toMin; m += durMin {
				s, ok := localMinute(d, m, loc)
				if !ok {
					continue
				}
				e := s.Add(duration)
				if s.Before(start) || e.After(end) {
					continue
				}
				key := s.Unix()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, Slot{Start: s, End: e, Template: tpl})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func hourToMinute(h float64) int {
	return int(math.Round(h * 60))
}

// localMinute returns the UTC instant of minute m after local midnight on civil date d.
// It reports false when that wall-clock time does not exist in loc.
func localMinute(d time.Time, m int, loc *time.Location) (time.Time, bool) {
	hour, minute := m/60, m%60
	t := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, loc)
	if t.Day() != d.Day() || t.Hour() != hour || t.Minute() != minute {
		return time.Time{}, false
	}
	return t.UTC(), true
}
