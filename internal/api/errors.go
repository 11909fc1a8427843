package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/andyleap/donna/internal/apperr"
)

// statusFor maps a failure to the HTTP status reported to the client.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidState),
		errors.Is(err, apperr.ErrMissingCode),
		errors.Is(err, apperr.ErrAuthorizationDenied):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConfiguration),
		errors.Is(err, apperr.ErrExchange),
		errors.Is(err, apperr.ErrStorage):
		return http.StatusInternalServerError
	case errors.Is(err, apperr.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, apperr.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
