package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"home-sensor-backend/internal/store"
)

// GetActiveAlerts handles GET /api/alerts/active.
func (h *Handler) GetActiveAlerts(c *gin.Context) {
	alerts, err := h.store.ActiveAlerts(c.Request.Context())
	if err != nil {
		slog.Error("failed to fetch active alerts", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// GetRecentAlerts handles GET /api/alerts/recent?limit=.
func (h *Handler) GetRecentAlerts(c *gin.Context) {
	alerts, err := h.store.RecentAlerts(c.Request.Context(), queryInt(c, "limit", store.DefaultAlertLimit))
	if err != nil {
		slog.Error("failed to fetch recent alerts", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ResolveAlert handles PATCH /api/alerts/:id/resolve.
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	alert, err := h.store.ResolveAlert(c.Request.Context(), id, h.now())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Alert not found"})
		return
	}
	if err != nil {
		slog.Error("failed to resolve alert", "id", id, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve alert"})
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusOK, alert)
}
