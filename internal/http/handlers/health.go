package handlers

import (
	"net/http"

	"github.com/signalix/vault/internal/envelope"
)

// HealthHandler reports liveness. The database is not touched so an idle pool stays closed.
type HealthHandler struct {
	connected func() bool
}

// NewHealthHandler creates a health handler. connected may be nil when no database is configured.
func NewHealthHandler(connected func() bool) *HealthHandler {
	return &HealthHandler{connected: connected}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"ok": true}
	if h.connected != nil {
		resp["dbConnected"] = h.connected()
	}
	envelope.WriteJSON(w, http.StatusOK, resp)
}
