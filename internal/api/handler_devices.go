package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"home-sensor-backend/internal/metrics"
	"home-sensor-backend/internal/sensor"
)

const sourceHTTP = "http"

// PostReading handles POST /api/readings. Once the body decodes to a reading with a
// room id the device always gets a success reply, whatever happens downstream.
func (h *Handler) PostReading(c *gin.Context) {
	var r sensor.Reading
	if err := c.ShouldBindJSON(&r); err != nil {
		metrics.ObserveReading(sourceHTTP, metrics.ReadingRejected, 0)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reading: " + err.Error()})
		return
	}

	if _, err := h.ingester.Ingest(c.Request.Context(), sourceHTTP, r); err != nil {
		if errors.Is(err, sensor.ErrMissingRoomID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reading must include a room id"})
			return
		}
		slog.Error("ingest failed", "room", r.RoomID, "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// GetCommand handles GET /api/commands?id=<roomId>. A returned command is consumed.
func (h *Handler) GetCommand(c *gin.Context) {
	roomID := c.Query("id")
	if roomID == "" {
		c.JSON(http.StatusOK, gin.H{"command": nil})
		return
	}

	cmd, ok := h.mailbox.Poll(roomID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"command": nil})
		return
	}
	metrics.AddCommands(metrics.CommandDelivered, 1)
	slog.Info("command delivered", "room", roomID, "command", cmd)
	c.JSON(http.StatusOK, gin.H{"command": cmd})
}
