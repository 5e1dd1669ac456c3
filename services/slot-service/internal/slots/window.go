package slots

import (
	"fmt"
	"time"
)

// Window is the range a query works over. Slots are generated inside [Start, HorizonEnd];
// End pads HorizonEnd to the next month boundary in the viewer timezone so the grid is complete.
type Window struct {
	Start      time.Time
	HorizonEnd time.Time
	End        time.Time
}

func ResolveWindow(at AppointmentType, reference time.Time, viewer *time.Location) (Window, error) {
	if at.MinScheduleHours < 0 {
		return Window{}, fmt.Errorf("%w: min schedule hours must not be negative (got %v)", ErrConfig, at.MinScheduleHours)
	}
	if at.MaxScheduleDays <= 0 {
		return Window{}, fmt.Errorf("%w: max schedule days must be positive (got %d)", ErrConfig, at.MaxScheduleDays)
	}

	reference = reference.UTC()
	lead := time.Duration(at.MinScheduleHours * float64(time.Hour))
	start := ceilMinute(reference.Add(lead))
	horizon := reference.AddDate(0, 0, at.MaxScheduleDays)

	local := horizon.In(viewer)
	end := time.Date(local.Year(), local.Month()+1, 1, 0, 0, 0, 0, viewer).UTC()

	return Window{Start: start, HorizonEnd: horizon, End: end}, nil
}

func ceilMinute(t time.Time) time.Time {
	floor := t.Truncate(time.Minute)
	if floor.Equal(t) {
		return t
	}
	return floor.Add(time.Minute)
}
