package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/md-rashed-zaman/apptslots/libs/httpx"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

type TypeWriter interface {
	UpsertType(ctx context.Context, at slots.AppointmentType) error
}

// TypeEvicter drops a locally cached appointment type.
type TypeEvicter interface {
	Evict(id string) bool
}

type AdminHandler struct {
	store  TypeWriter
	cache  TypeEvicter
	logger *slog.Logger
}

// NewAdminHandler wires the upsert endpoint. cache may be nil.
func NewAdminHandler(store TypeWriter, cache TypeEvicter, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{store: store, cache: cache, logger: logger}
}

type templateRequest struct {
	Weekday   int     `json:"weekday" validate:"gte=0,lte=6"`
	StartHour float64 `json:"start_hour" validate:"gte=0,lt=24"`
	EndHour   float64 `json:"end_hour" validate:"gt=0,lte=24"`
}

type upsertTypeRequest struct {
	Name                 string            `json:"name" validate:"required,max=200"`
	Timezone             string            `json:"timezone" validate:"required"`
	DurationHours        float64           `json:"duration_hours" validate:"gt=0"`
	MinScheduleHours     float64           `json:"min_schedule_hours" validate:"gte=0"`
	MaxScheduleDays      int               `json:"max_schedule_days" validate:"gte=0,lte=366"`
	MinCancellationHours float64           `json:"min_cancellation_hours" validate:"gte=0"`
	AssignMethod         string            `json:"assign_method" validate:"omitempty,oneof=random chosen"`
	Category             string            `json:"category" validate:"omitempty,oneof=website custom work_hours"`
	WorkHoursOnly        bool              `json:"work_hours_only"`
	Templates            []templateRequest `json:"templates" validate:"dive"`
	StaffUserIDs         []string          `json:"staff_user_ids"`
}

func (req upsertTypeRequest) toAppointmentType(id string) slots.AppointmentType {
	at := slots.AppointmentType{
		ID:                   id,
		Name:                 strings.TrimSpace(req.Name),
		Timezone:             strings.TrimSpace(req.Timezone),
		DurationHours:        req.DurationHours,
		MinScheduleHours:     req.MinScheduleHours,
		MaxScheduleDays:      req.MaxScheduleDays,
		MinCancellationHours: req.MinCancellationHours,
		AssignPolicy:         slots.AssignPolicy(req.AssignMethod),
		Category:             slots.Category(req.Category),
		WorkHoursOnly:        req.WorkHoursOnly,
	}
	if at.AssignPolicy == "" {
		at.AssignPolicy = slots.AssignRandom
	}
	if at.Category == "" {
		at.Category = slots.CategoryWebsite
	}
	if at.MaxScheduleDays == 0 {
		at.MaxScheduleDays = 15
	}
	for _, t := range req.Templates {
		at.Templates = append(at.Templates, slots.SlotTemplate{Weekday: t.Weekday, StartHour: t.StartHour, EndHour: t.EndHour})
	}
	seen := make(map[string]bool, len(req.StaffUserIDs))
	for _, uid := range req.StaffUserIDs {
		uid = strings.TrimSpace(uid)
		if uid == "" || seen[uid] {
			continue
		}
		seen[uid] = true
		at.StaffUsers = append(at.StaffUsers, slots.StaffUser{ID: uid})
	}
	return at
}

// Put serves PUT /api/v1/appointment-types/{typeID}.
func (h *AdminHandler) Put(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "typeID"))
	if id == "" {
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", "missing appointment type id")
		return
	}

	var req upsertTypeRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpx.WriteError(w, r, http.StatusRequestEntityTooLarge, "too_large", "request body too large")
			return
		}
		httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", "invalid json body")
		return
	}
	if err := validate.Struct(req); err != nil {
		httpx.WriteError(w, r, http.StatusUnprocessableEntity, "config", validationMessage(err))
		return
	}

	at := req.toAppointmentType(id)
	if err := h.store.UpsertType(r.Context(), at); err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("appointment type upsert failed",
				"request_id", httpx.RequestIDFromContext(r.Context()),
				"appointment_type_id", id,
				"err", err,
			)
			httpx.WriteError(w, r, status, code, "upsert failed")
			return
		}
		httpx.WriteError(w, r, status, code, err.Error())
		return
	}
	if h.cache != nil {
		h.cache.Evict(id)
	}
	h.logger.Info("appointment type upserted", "appointment_type_id", id, "staff", len(at.StaffUsers), "templates", len(at.Templates))
	w.WriteHeader(http.StatusNoContent)
}
