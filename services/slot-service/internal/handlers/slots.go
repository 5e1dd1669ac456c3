package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/md-rashed-zaman/apptslots/libs/httpx"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
)

type SlotQuerier interface {
	GetSlots(ctx context.Context, q slots.Query) (slots.Result, error)
}

type SlotsHandler struct {
	engine SlotQuerier
	logger *slog.Logger
}

func NewSlotsHandler(engine SlotQuerier, logger *slog.Logger) *SlotsHandler {
	return &SlotsHandler{engine: engine, logger: logger}
}

// Get serves GET /api/v1/appointment-types/{typeID}/slots. The optional query parameters are
// reference (RFC3339, default now), timezone (IANA, default UTC) and staff_user_id.
func (h *SlotsHandler) Get(w http.ResponseWriter, r *http.Request) {
	q := slots.Query{
		AppointmentTypeID: chi.URLParam(r, "typeID"),
		ViewerTimezone:    strings.TrimSpace(r.URL.Query().Get("timezone")),
		ChosenStaffUserID: strings.TrimSpace(r.URL.Query().Get("staff_user_id")),
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("reference")); raw != "" {
		ref, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_request", "reference must be an RFC3339 timestamp")
			return
		}
		q.Reference = ref.UTC()
	}

	res, err := h.engine.GetSlots(r.Context(), q)
	if err != nil {
		status, code := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("slot query failed",
				"request_id", httpx.RequestIDFromContext(r.Context()),
				"appointment_type_id", q.AppointmentTypeID,
				"err", err,
			)
		}
		httpx.WriteError(w, r, status, code, "no availability")
		return
	}
	render.JSON(w, r, res)
}
