package slots

import (
	"fmt"
	"math"
	"time"
)

type AssignPolicy string

const (
	AssignRandom AssignPolicy = "random"
	AssignChosen AssignPolicy = "chosen"
)

type Category string

const (
	CategoryWebsite   Category = "website"
	CategoryCustom    Category = "custom"
	CategoryWorkHours Category = "work_hours"
)

// AppointmentType is a bookable offering together with its weekly slot templates.
type AppointmentType struct {
	ID                   string
	Name                 string
	Timezone             string
	DurationHours        float64
	MinScheduleHours     float64
	MaxScheduleDays      int
	MinCancellationHours float64
	AssignPolicy         AssignPolicy
	Category             Category
	WorkHoursOnly        bool
	StaffUsers           []StaffUser
	Templates            []SlotTemplate
}

// SlotTemplate is one weekly opening. Weekday 0 is Monday, 6 is Sunday.
// Hours are fractional and interpreted in the appointment type timezone.
type SlotTemplate struct {
	Weekday   int
	StartHour float64
	EndHour   float64
}

type StaffUser struct {
	ID       string
	Name     string
	Timezone string
	Employee *Employee
}

// Employee links a staff user to a working calendar. A nil Employee or an empty
// CalendarID means the user has no work-hours restriction.
type Employee struct {
	ID         string
	CalendarID string
}

func (u StaffUser) hasWorkingCalendar() bool {
	return u.Employee != nil && u.Employee.ID != "" && u.Employee.CalendarID != ""
}

// Interval is a half-open UTC range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

type Meeting struct {
	ID          string
	Start       time.Time
	End         time.Time
	AttendeeIDs []string
	AllDay      bool
	Cancelled   bool
}

// Slot is a candidate offering. StaffUserID is empty until assignment.
type Slot struct {
	Start       time.Time
	End         time.Time
	StaffUserID string
	Template    SlotTemplate
}

// Duration returns the slot length rounded to whole minutes.
func (t AppointmentType) Duration() time.Duration {
	return time.Duration(math.Round(t.DurationHours*60)) * time.Minute
}

func (t AppointmentType) requiresWorkHours() bool {
	return t.WorkHoursOnly || t.Category == CategoryWorkHours
}

// effectiveTemplates returns the configured templates, or a full-day template for every
// weekday when a work_hours type has none.
func (t AppointmentType) effectiveTemplates() []SlotTemplate {
	if len(t.Templates) > 0 || t.Category != CategoryWorkHours {
		return t.Templates
	}
	out := make([]SlotTemplate, 0, 7)
	for wd := 0; wd < 7; wd++ {
		out = append(out, SlotTemplate{Weekday: wd, StartHour: 0, EndHour: 24})
	}
	return out
}

// Validate reports configuration problems as ErrConfig.
func (t AppointmentType) Validate() error {
	if _, err := time.LoadLocation(t.Timezone); err != nil || t.Timezone == "" {
		return fmt.Errorf("%w: unknown timezone %q", ErrConfig, t.Timezone)
	}
	if t.DurationHours <= 0 || t.Duration() < time.Minute {
		return fmt.Errorf("%w: slot duration must be positive (got %v hours)", ErrConfig, t.DurationHours)
	}
	switch t.AssignPolicy {
	case AssignRandom, AssignChosen:
	default:
		return fmt.Errorf("%w: unknown assign policy %q", ErrConfig, t.AssignPolicy)
	}
	switch t.Category {
	case CategoryWebsite, CategoryCustom, CategoryWorkHours:
	default:
		return fmt.Errorf("%w: unknown category %q", ErrConfig, t.Category)
	}
	if len(t.Templates) == 0 && t.Category != CategoryWorkHours {
		return fmt.Errorf("%w: appointment type %s has no slot templates", ErrConfig, t.ID)
	}
	for _, tpl := range t.Templates {
		if tpl.Weekday < 0 || tpl.Weekday > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrConfig, tpl.Weekday)
		}
		if tpl.StartHour < 0 || tpl.EndHour > 24 || tpl.StartHour >= tpl.EndHour {
			return fmt.Errorf("%w: template hours %v-%v invalid", ErrConfig, tpl.StartHour, tpl.EndHour)
		}
	}
	return nil
}
