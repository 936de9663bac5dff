package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"home-sensor-backend/internal/metrics"
	"home-sensor-backend/internal/mw"
	"home-sensor-backend/internal/sensor"
)

type controlRequest struct {
	Cmd    string        `json:"cmd" binding:"required"`
	RoomID sensor.RoomID `json:"roomId"`
}

// PostControl handles POST /api/control. Without a roomId the command is written to
// every known room.
func (h *Handler) PostControl(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cmd is required"})
		return
	}

	if req.RoomID != "" {
		h.mailbox.Enqueue(string(req.RoomID), req.Cmd)
		metrics.AddCommands(metrics.CommandQueued, 1)
		slog.Info("command queued", "room", req.RoomID, "command", req.Cmd, "by", mw.Subject(c))
	} else {
		n := h.mailbox.Broadcast(h.rooms.IDs(), req.Cmd)
		metrics.AddCommands(metrics.CommandQueued, n)
		slog.Info("command broadcast", "rooms", n, "command", req.Cmd, "by", mw.Subject(c))
	}

	c.JSON(http.StatusOK, gin.H{"status": "Command Queued"})
}
