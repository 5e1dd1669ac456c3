package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/storage"
)

const (
	TypeChanged     = storage.EventTypeChanged
	CalendarChanged = "calendar.changed.v1"
)

// CalendarChangedPayload is the body of CalendarChanged.
type CalendarChangedPayload struct {
	EmployeeID string `json:"employee_id"`
}

type TypeEvicter interface {
	Evict(id string) bool
}

type IntervalBumper interface {
	Bump(ctx context.Context, employeeID string) error
}

// Invalidator applies change events to the caches. Either cache may be nil when disabled.
type Invalidator struct {
	types     TypeEvicter
	intervals IntervalBumper
	logger    *slog.Logger
}

func NewInvalidator(types TypeEvicter, intervals IntervalBumper, logger *slog.Logger) *Invalidator {
	return &Invalidator{types: types, intervals: intervals, logger: logger}
}

// Handle applies one event. Unknown types and malformed payloads are logged and skipped so
// they never block the stream; only cache backend failures are returned.
func (i *Invalidator) Handle(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case TypeChanged:
		var evt storage.TypeChanged
		if err := json.Unmarshal(payload, &evt); err != nil || evt.AppointmentTypeID == "" {
			i.logger.Warn("malformed event skipped", "event_type", eventType, "err", err)
			return nil
		}
		if i.types != nil {
			evicted := i.types.Evict(evt.AppointmentTypeID)
			i.logger.Debug("appointment type evicted", "appointment_type_id", evt.AppointmentTypeID, "cached", evicted)
		}
		return nil
	case CalendarChanged:
		var evt CalendarChangedPayload
		if err := json.Unmarshal(payload, &evt); err != nil || evt.EmployeeID == "" {
			i.logger.Warn("malformed event skipped", "event_type", eventType, "err", err)
			return nil
		}
		if i.intervals == nil {
			return nil
		}
		if err := i.intervals.Bump(ctx, evt.EmployeeID); err != nil {
			return fmt.Errorf("bump interval cache for %s: %w", evt.EmployeeID, err)
		}
		return nil
	default:
		i.logger.Warn("unknown event skipped", "event_type", eventType)
		return nil
	}
}
