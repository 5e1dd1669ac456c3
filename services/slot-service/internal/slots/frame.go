package slots

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type Month struct {
	Label string `json:"label"`
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Weeks []Week `json:"weeks"`
}

type Week struct {
	Days []Day `json:"days"`
}

type Day struct {
	Date    string     `json:"date"`
	InRange bool       `json:"in_range"`
	Slots   []SlotView `json:"slots"`
}

// SlotView is the rendered form of an assigned slot.
type SlotView struct {
	Datetime      string  `json:"datetime"`
	EndDatetime   string  `json:"end_datetime"`
	LocalStart    string  `json:"local_start"`
	DurationHours float64 `json:"duration_hours"`
	StaffUserID   string  `json:"staff_user_id"`
}

// BuildFrame lays out every month from the one containing w.Start to the one containing
// w.HorizonEnd, in the viewer timezone. Weeks run Monday to Sunday.
func BuildFrame(w Window, viewer *time.Location) []Month {
	first := civilDate(w.Start.In(viewer))
	last := civilDate(w.HorizonEnd.In(viewer))
	if last.Before(first) {
		last = first
	}

	var months []Month
	for m := monthStart(first); !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, buildMonth(m))
	}
	return months
}

func buildMonth(first time.Time) Month {
	next := first.AddDate(0, 1, 0)
	cursor := first.AddDate(0, 0, -mondayWeekday(first.Weekday()))

	month := Month{
		Label: fmt.Sprintf("%s %d", first.Month(), first.Year()),
		Year:  first.Year(),
		Month: int(first.Month()),
	}
	for cursor.Before(next) {
		week := Week{Days: make([]Day, 0, 7)}
		for i := 0; i < 7; i++ {
			week.Days = append(week.Days, Day{
				Date:    cursor.Format(dateLayout),
				InRange: cursor.Month() == first.Month(),
				Slots:   []SlotView{},
			})
			cursor = cursor.AddDate(0, 0, 1)
		}
		month.Weeks = append(month.Weeks, week)
	}
	return month
}

// civilDate maps a local time to its calendar date at midnight UTC. Date arithmetic is
// done in UTC so DST transitions never skip or repeat a day.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthStart(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// mondayWeekday converts time.Weekday (Sunday = 0) to Monday = 0 numbering.
func mondayWeekday(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
