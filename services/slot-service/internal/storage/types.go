package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

type TypeRepository struct {
	pool *db.Pool
}

func NewTypeRepository(pool *db.Pool) *TypeRepository {
	return &TypeRepository{pool: pool}
}

// Get loads an appointment type with its templates and staff. Every read happens in one
// repeatable-read transaction so the three result sets belong to the same snapshot.
func (r *TypeRepository) Get(ctx context.Context, id string) (slots.AppointmentType, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return slots.AppointmentType{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var at slots.AppointmentType
	var assign, category string
	err = tx.QueryRow(ctx, `
		SELECT id, name, timezone, duration_hours, min_schedule_hours, max_schedule_days,
			min_cancellation_hours, assign_method, category, work_hours_only
		FROM appointment_types
		WHERE id = $1
	`, id).Scan(&at.ID, &at.Name, &at.Timezone, &at.DurationHours, &at.MinScheduleHours, &at.MaxScheduleDays,
		&at.MinCancellationHours, &assign, &category, &at.WorkHoursOnly)
	if errors.Is(err, pgx.ErrNoRows) {
		return slots.AppointmentType{}, fmt.Errorf("appointment type %s: %w", id, slots.ErrNotFound)
	}
	if err != nil {
		return slots.AppointmentType{}, err
	}
	at.AssignPolicy = slots.AssignPolicy(assign)
	at.Category = slots.Category(category)

	if at.Templates, err = loadTemplates(ctx, tx, id); err != nil {
		return slots.AppointmentType{}, err
	}
	if at.StaffUsers, err = loadStaff(ctx, tx, id); err != nil {
		return slots.AppointmentType{}, err
	}
	return at, tx.Commit(ctx)
}

func loadTemplates(ctx context.Context, tx pgx.Tx, typeID string) ([]slots.SlotTemplate, error) {
	rows, err := tx.Query(ctx, `
		SELECT weekday, start_hour, end_hour
		FROM appointment_slot_templates
		WHERE appointment_type_id = $1
		ORDER BY weekday, start_hour, id
	`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []slots.SlotTemplate
	for rows.Next() {
		var t slots.SlotTemplate
		if err := rows.Scan(&t.Weekday, &t.StartHour, &t.EndHour); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func loadStaff(ctx context.Context, tx pgx.Tx, typeID string) ([]slots.StaffUser, error) {
	rows, err := tx.Query(ctx, `
		SELECT u.id, u.name, u.timezone, e.id, COALESCE(e.calendar_id, '')
		FROM appointment_type_staff s
		JOIN staff_users u ON u.id = s.staff_user_id
		LEFT JOIN employees e ON e.staff_user_id = u.id
		WHERE s.appointment_type_id = $1
		ORDER BY u.id
	`, typeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []slots.StaffUser
	for rows.Next() {
		var u slots.StaffUser
		var employeeID *string
		var calendarID string
		if err := rows.Scan(&u.ID, &u.Name, &u.Timezone, &employeeID, &calendarID); err != nil {
			return nil, err
		}
		if employeeID != nil {
			u.Employee = &slots.Employee{ID: *employeeID, CalendarID: calendarID}
		}
		out = append(out, u)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}
