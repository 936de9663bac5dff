package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"home-sensor-backend/internal/db"
	"home-sensor-backend/internal/roomstate"
)

// GetRooms handles GET /api/rooms, listing persisted rooms.
func (h *Handler) GetRooms(c *gin.Context) {
	rooms, err := h.store.GetAllRooms(c.Request.Context())
	if err != nil {
		slog.Error("failed to fetch rooms", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch rooms"})
		return
	}
	c.JSON(http.StatusOK, rooms)
}

// liveRoom is a RoomState with the command still waiting for the room's device.
type liveRoom struct {
	roomstate.RoomState
	PendingCommand *string `json:"pendingCommand"`
}

// GetLiveRooms handles GET /api/rooms/live.
func (h *Handler) GetLiveRooms(c *gin.Context) {
	states := h.rooms.List()
	response := make([]liveRoom, len(states))
	for i, st := range states {
		response[i] = liveRoom{RoomState: st}
		if cmd, ok := h.mailbox.Pending(st.ID); ok {
			response[i].PendingCommand = &cmd
		}
	}
	c.JSON(http.StatusOK, response)
}

// GetStatus handles GET /api/status, the whole-house snapshot.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Aggregate())
}

// Healthz reports whether the database is reachable.
func (h *Handler) Healthz(c *gin.Context) {
	if err := db.Ping(c.Request.Context(), h.store.DB()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
