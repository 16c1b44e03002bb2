package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ibcol/portal/internal/common"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps sentinel errors to a status and a client-safe message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidReference):
		return http.StatusBadRequest, "invalid file reference"
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "file not found"
	case errors.Is(err, common.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "storage temporarily unavailable, please retry"
	case errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized, "token expired"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusFor(err)
	switch {
	case status >= 500:
		h.logger.Error(r.Context(), op+" failed", "error", err)
	case status != http.StatusNotFound:
		h.logger.Warn(r.Context(), op+" rejected", "error", err)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, msg)
}
