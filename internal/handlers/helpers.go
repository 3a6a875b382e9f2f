package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/nahidhasan98/whatsapp-bridge/internal/errors"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
)

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.Error("Failed to encode JSON response", err)
	}
}

// writeAppError writes appErr as an ErrorResponse. Server-side failures are
// logged as errors, rejected requests as warnings.
func (h *Handler) writeAppError(w http.ResponseWriter, appErr *errors.AppError) {
	log := h.log.With("error_code", appErr.Code).With("status_code", appErr.StatusCode)
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.Error(appErr.Message, appErr.Err)
	} else {
		log.WarnErr(appErr.Message, appErr.Err)
	}

	h.writeJSON(w, appErr.StatusCode, &models.ErrorResponse{
		Error:   appErr.Message,
		Code:    string(appErr.Code),
		Details: appErr.Details,
	})
}
