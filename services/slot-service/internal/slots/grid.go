package slots

import (
	"sort"
	"time"
)

// Assemble attaches assigned slots to the in-range day matching their local start date in
// the viewer timezone. Slots are placed in start order. Slots without a matching in-range day
// are dropped.
func Assemble(months []Month, assigned []Slot, durationHours float64, viewer *time.Location) []Month {
	days := map[string]*Day{}
	for mi := range months {
		for wi := range months[mi].Weeks {
			for di := range months[mi].Weeks[wi].Days {
				d := &months[mi].Weeks[wi].Days[di]
				if d.InRange {
					days[d.Date] = d
				}
			}
		}
	}

	ordered := append([]Slot(nil), assigned...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })

	for _, s := range ordered {
		local := s.Start.In(viewer)
		d, ok := days[local.Format(dateLayout)]
		if !ok {
			continue
		}
		d.Slots = append(d.Slots, SlotView{
			Datetime:      s.Start.UTC().Format(time.RFC3339),
			EndDatetime:   s.End.UTC().Format(time.RFC3339),
			LocalStart:    local.Format("15:04"),
			DurationHours: durationHours,
			StaffUserID:   s.StaffUserID,
		})
	}
	return months
}
