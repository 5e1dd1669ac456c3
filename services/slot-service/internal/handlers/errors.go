package handlers

import (
	"errors"
	"net/http"

	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/slots"
	"github.com/md-rashed-zaman/apptslots/services/slot-service/internal/storage"
)

// statusFor maps engine and storage errors to an HTTP status and a machine-readable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, slots.ErrConfig):
		return http.StatusUnprocessableEntity, "config"
	case errors.Is(err, slots.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, slots.ErrCollaborator):
		return http.StatusBadGateway, "collaborator"
	case errors.Is(err, slots.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
