package handlers

import (
	"net/http"

	"github.com/nahidhasan98/whatsapp-bridge/internal/errors"
	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
	"github.com/nahidhasan98/whatsapp-bridge/internal/session"
)

// StartSession starts (or restarts) the WhatsApp session
func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Connect(r.Context()); err != nil {
		h.writeAppError(w, errors.ConnectionFailed(err))
		return
	}

	h.log.Info("Session start requested by operator")
	h.writeJSON(w, http.StatusAccepted, &models.SessionActionResponse{
		Status:  "starting",
		Message: "Session is starting; watch the WebSocket for qr and ready frames",
	})
}

// StopSession stops the session. With ?logout=true the device is also
// unlinked and the next start needs a fresh pairing.
func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	logout := r.URL.Query().Get("logout") == "true"

	var err error
	if logout {
		err = h.session.Disconnect(r.Context(), session.ReasonUserLogout)
	} else {
		err = h.session.Stop(r.Context())
	}
	if err != nil {
		h.writeAppError(w, errors.Wrap(err, errors.ErrCodeServiceUnavailable, "Failed to stop session"))
		return
	}

	h.log.With("logout", logout).Info("Session stopped by operator")
	h.writeJSON(w, http.StatusOK, &models.SessionActionResponse{Status: "stopped"})
}
