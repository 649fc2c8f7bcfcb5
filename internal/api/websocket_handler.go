package api

import (
	"net/http"

	"github.com/skillswap/backend/internal/realtime"
	"go.uber.org/zap"
)

// WebSocketHandler upgrades authenticated clients onto the realtime hub
type WebSocketHandler struct {
	hub    *realtime.Hub
	logger *zap.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, logger: logger}
}

// Connect handles GET /ws
func (h *WebSocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	// The upgrader has already written an HTTP error when this fails.
	if err := h.hub.Serve(w, r, userID); err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("userID", userID.String()), zap.Error(err))
	}
}
