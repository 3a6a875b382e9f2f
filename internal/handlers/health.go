package handlers

import (
	"net/http"
	"time"

	"github.com/nahidhasan98/whatsapp-bridge/internal/models"
)

// HealthCheck is the liveness probe; it never looks at the session
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, &models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now().Unix(),
	})
}

// Status reports whether the session is ready and how many clients are
// connected
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()

	response := &models.StatusResponse{
		WhatsAppReady:    snap.Ready(),
		ConnectedClients: h.hub.Count(),
		Timestamp:        time.Now().Unix(),
	}

	// Add session details if requested
	if r.URL.Query().Get("detailed") == "true" {
		response.State = snap.State.String()
		response.LastError = snap.LastError
		response.Generation = snap.Generation
		if !snap.ReadyAt.IsZero() {
			readyAt := snap.ReadyAt.Unix()
			response.ReadyAt = &readyAt
		}
	}

	h.writeJSON(w, http.StatusOK, response)
}
