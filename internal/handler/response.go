// Package handler contains the HTTP handlers. Handlers decode requests,
// delegate to the service layer, and encode responses; they never touch the
// database or the identity provider directly.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/codelove/codelove/internal/apperror"
)

// ErrorResponse is the error shape every API endpoint returns.
type ErrorResponse struct {
	Error   string `json:"error"`           // machine-readable kind, e.g. "not_found"
	Message string `json:"message"`         // human-readable description
	Field   string `json:"field,omitempty"` // offending form field, when known
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; logging is all that's left.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error onto an HTTP status. The service layer
// speaks apperror sentinels, not status codes; the translation lives here so
// a different transport could map the same errors its own way.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		kind := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			kind = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			kind = "not_found"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			kind = "conflict"
		case errors.Is(err, apperror.ErrUnavailable):
			status = http.StatusServiceUnavailable
			kind = "unavailable"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   kind,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	// Unknown error. The raw message may contain SQL or file paths, so the
	// client gets a generic body only.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
