package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptslots/libs/db"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

const (
	AggregateAppointmentType = "appointment_type"
	EventTypeChanged         = "appointment.type.changed.v1"

	workHoursStaffIndex = "appointment_type_staff_work_hours_uniq"
)

// TypeChanged is the payload of EventTypeChanged.
type TypeChanged struct {
	AppointmentTypeID string `json:"appointment_type_id"`
}

type AdminRepository struct {
	pool   *db.Pool
	outbox *OutboxRepository
}

func NewAdminRepository(pool *db.Pool, outbox *OutboxRepository) *AdminRepository {
	return &AdminRepository{pool: pool, outbox: outbox}
}

// UpsertType replaces an appointment type, its templates, and its staff links, and records a
// change event in the outbox in the same transaction. A staff user already linked to another
// work_hours type yields ErrConflict; an unknown or repeated staff user yields slots.ErrConfig.
func (r *AdminRepository) UpsertType(ctx context.Context, at slots.AppointmentType) error {
	if err := at.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(TypeChanged{AppointmentTypeID: at.ID})
	if err != nil {
		return err
	}

	err = r.pool.InTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO appointment_types (id, name, timezone, duration_hours, min_schedule_hours,
				max_schedule_days, min_cancellation_hours, assign_method, category, work_hours_only)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name,
				timezone = EXCLUDED.timezone,
				duration_hours = EXCLUDED.duration_hours,
				min_schedule_hours = EXCLUDED.min_schedule_hours,
				max_schedule_days = EXCLUDED.max_schedule_days,
				min_cancellation_hours = EXCLUDED.min_cancellation_hours,
				assign_method = EXCLUDED.assign_method,
				category = EXCLUDED.category,
				work_hours_only = EXCLUDED.work_hours_only,
				updated_at = now()
		`, at.ID, at.Name, at.Timezone, at.DurationHours, at.MinScheduleHours, at.MaxScheduleDays,
			at.MinCancellationHours, string(at.AssignPolicy), string(at.Category), at.WorkHoursOnly)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, `DELETE FROM appointment_slot_templates WHERE appointment_type_id = $1`, at.ID); err != nil {
			return err
		}
		for _, t := range at.Templates {
			_, err := tx.Exec(ctx, `
				INSERT INTO appointment_slot_templates (appointment_type_id, weekday, start_hour, end_hour)
				VALUES ($1, $2, $3, $4)
			`, at.ID, t.Weekday, t.StartHour, t.EndHour)
			if err != nil {
				return err
			}
		}

		if _, err := tx.Exec(ctx, `DELETE FROM appointment_type_staff WHERE appointment_type_id = $1`, at.ID); err != nil {
			return err
		}
		workHours := at.Category == slots.CategoryWorkHours
		for _, u := range at.StaffUsers {
			_, err := tx.Exec(ctx, `
				INSERT INTO appointment_type_staff (appointment_type_id, staff_user_id, work_hours)
				VALUES ($1, $2, $3)
			`, at.ID, u.ID, workHours)
			if err != nil {
				return staffLinkError(u.ID, err)
			}
		}

		return r.outbox.Insert(ctx, tx, Event{
			AggregateType: AggregateAppointmentType,
			AggregateID:   at.ID,
			EventType:     EventTypeChanged,
			Payload:       payload,
		})
	})
	return err
}

func staffLinkError(staffUserID string, err error) error {
	switch {
	case db.IsUniqueViolationOn(err, workHoursStaffIndex):
		return fmt.Errorf("staff user %s already belongs to a work_hours appointment type: %w", staffUserID, ErrConflict)
	case db.IsUniqueViolation(err):
		return fmt.Errorf("%w: staff user %s listed twice", slots.ErrConfig, staffUserID)
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: unknown staff user %s", slots.ErrConfig, staffUserID)
	default:
		return err
	}
}
