package slots

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultQueryTimeout = 5 * time.Second

// Query is one get-slots request. Zero values mean: reference = clock now, viewer timezone
// UTC, no pre-chosen staff user.
type Query struct {
	AppointmentTypeID string
	Reference         time.Time
	ViewerTimezone    string
	ChosenStaffUserID string
}

type TypeInfo struct {
	ID                   string  `json:"id"`
	Name                 string  `json:"name"`
	Timezone             string  `json:"timezone"`
	DurationHours        float64 `json:"duration_hours"`
	MinCancellationHours float64 `json:"min_cancellation_hours"`
	AssignMethod         string  `json:"assign_method"`
}

type Result struct {
	AppointmentType TypeInfo `json:"appointment_type"`
	Months          []Month  `json:"months"`
}

type Engine struct {
	types     AppointmentTypeStore
	meetings  MeetingStore
	calendars WorkingCalendarProvider
	clock     Clock
	logger    *slog.Logger
	timeout   time.Duration
	tracer    trace.Tracer
}

type Option func(*Engine)

func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTimeout sets the soft per-query limit. Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewEngine(logger *slog.Logger, types AppointmentTypeStore, meetings MeetingStore, calendars WorkingCalendarProvider, opts ...Option) *Engine {
	e := &Engine{
		types:     types,
		meetings:  meetings,
		calendars: calendars,
		clock:     SystemClock,
		logger:    logger,
		timeout:   DefaultQueryTimeout,
		tracer:    otel.Tracer("slot-service/slots"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GetSlots computes the bookable slot grid for one appointment type. It never returns a
// partial grid: any collaborator failure, cancellation, or timeout yields an error only.
func (e *Engine) GetSlots(ctx context.Context, q Query) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	ctx, span := e.tracer.Start(ctx, "slots.get_slots", trace.WithAttributes(
		attribute.String("appointment_type.id", q.AppointmentTypeID),
		attribute.String("viewer.timezone", q.ViewerTimezone),
	))
	defer span.End()

	res, err := e.getSlots(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, ErrInternalInvariant) {
			e.logger.Error("slot query invariant violated", "appointment_type_id", q.AppointmentTypeID, "err", err)
		}
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) getSlots(ctx context.Context, q Query) (Result, error) {
	viewer, err := viewerLocation(q.ViewerTimezone)
	if err != nil {
		return Result{}, err
	}

	at, err := e.types.Get(ctx, q.AppointmentTypeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Result{}, fmt.Errorf("appointment type %s: %w", q.AppointmentTypeID, err)
		}
		return Result{}, collaboratorError(ctx, "load appointment type", err)
	}
	if err := at.Validate(); err != nil {
		return Result{}, err
	}
	loc, err := time.LoadLocation(at.Timezone)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	reference := q.Reference
	if reference.IsZero() {
		reference = e.clock.Now()
	}
	window, err := ResolveWindow(at, reference, viewer)
	if err != nil {
		return Result{}, err
	}
	if err := checkpoint(ctx, "window resolution"); err != nil {
		return Result{}, err
	}

	users, chosen, err := eligibleUsers(at, q.ChosenStaffUserID)
	if err != nil {
		return Result{}, err
	}

	res := Result{AppointmentType: typeInfo(at), Months: BuildFrame(window, viewer)}
	if len(users) == 0 {
		return res, nil
	}

	meetings, err := e.fetchMeetings(ctx, users, window)
	if err != nil {
		return Result{}, err
	}
	if err := checkpoint(ctx, "meetings fetch"); err != nil {
		return Result{}, err
	}

	workHours := at.requiresWorkHours()
	var intervals map[string][]Interval
	if workHours {
		intervals, err = e.fetchIntervals(ctx, users, window)
		if err != nil {
			return Result{}, err
		}
		if err := checkpoint(ctx, "working hours fetch"); err != nil {
			return Result{}, err
		}
	}

	oracle, err := NewOracle(users, meetings, intervals, workHours, viewer)
	if err != nil {
		return Result{}, err
	}

	_, genSpan := e.tracer.Start(ctx, "slots.generate")
	candidates := GenerateSlots(at, loc, window.Start, window.HorizonEnd)
	assigned := make([]Slot, 0, len(candidates))
	free := make([]string, 0, len(users))
	for _, c := range candidates {
		if !c.End.After(c.Start) {
			genSpan.End()
			return Result{}, fmt.Errorf("%w: slot at %s has non-positive duration", ErrInternalInvariant, c.Start.Format(time.RFC3339))
		}
		free = free[:0]
		for _, u := range users {
			if oracle.Free(u.ID, c.Start, c.End) {
				free = append(free, u.ID)
			}
		}
		if id, ok := Assign(c.Start, free, at.AssignPolicy, chosen); ok {
			c.StaffUserID = id
			assigned = append(assigned, c)
		}
	}
	genSpan.SetAttributes(attribute.Int("slots.candidates", len(candidates)), attribute.Int("slots.assigned", len(assigned)))
	genSpan.End()

	if err := checkpoint(ctx, "slot assignment"); err != nil {
		return Result{}, err
	}

	_, asmSpan := e.tracer.Start(ctx, "slots.assemble")
	res.Months = Assemble(res.Months, assigned, at.DurationHours, viewer)
	asmSpan.End()

	e.logger.Debug("slot query complete",
		"appointment_type_id", at.ID,
		"candidates", len(candidates),
		"assigned", len(assigned),
	)
	return res, nil
}

func (e *Engine) fetchMeetings(ctx context.Context, users []StaffUser, w Window) ([]Meeting, error) {
	ctx, span := e.tracer.Start(ctx, "slots.fetch_meetings", trace.WithAttributes(attribute.Int("staff_users", len(users))))
	defer span.End()

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	meetings, err := e.meetings.Query(ctx, ids, w.Start, w.End)
	if err != nil {
		span.RecordError(err)
		return nil, collaboratorError(ctx, "query meetings", err)
	}
	return meetings, nil
}

func (e *Engine) fetchIntervals(ctx context.Context, users []StaffUser, w Window) (map[string][]Interval, error) {
	var employeeIDs []string
	for _, u := range users {
		if u.hasWorkingCalendar() {
			employeeIDs = append(employeeIDs, u.Employee.ID)
		}
	}
	if len(employeeIDs) == 0 {
		return nil, nil
	}

	ctx, span := e.tracer.Start(ctx, "slots.fetch_intervals", trace.WithAttributes(attribute.Int("employees", len(employeeIDs))))
	defer span.End()

	intervals, err := e.calendars.Intervals(ctx, employeeIDs, w.Start, w.End)
	if err != nil {
		span.RecordError(err)
		return nil, collaboratorError(ctx, "query working intervals", err)
	}
	return intervals, nil
}

// eligibleUsers returns the staff users to evaluate, sorted by id, and the pre-chosen user id
// used by the chosen policy.
func eligibleUsers(at AppointmentType, chosen string) ([]StaffUser, string, error) {
	users := append([]StaffUser(nil), at.StaffUsers...)
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	if chosen == "" {
		if at.AssignPolicy != AssignChosen || len(users) == 0 {
			return users, "", nil
		}
		chosen = users[0].ID
	}
	for _, u := range users {
		if u.ID == chosen {
			return []StaffUser{u}, chosen, nil
		}
	}
	return nil, "", fmt.Errorf("staff user %s is not eligible for appointment type %s: %w", chosen, at.ID, ErrNotFound)
}

func viewerLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown viewer timezone %q", ErrConfig, name)
	}
	return loc, nil
}

func typeInfo(at AppointmentType) TypeInfo {
	return TypeInfo{
		ID:                   at.ID,
		Name:                 at.Name,
		Timezone:             at.Timezone,
		DurationHours:        at.DurationHours,
		MinCancellationHours: at.MinCancellationHours,
		AssignMethod:         string(at.AssignPolicy),
	}
}
