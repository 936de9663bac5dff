package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"home-sensor-backend/internal/export"
	"home-sensor-backend/internal/metrics"
	"home-sensor-backend/internal/model"
	"home-sensor-backend/internal/sensor"
	"home-sensor-backend/internal/store"
)

// GetLogs handles GET /api/logs?limit=&offset=.
func (h *Handler) GetLogs(c *gin.Context) {
	limit := queryInt(c, "limit", store.DefaultLogLimit)
	offset := queryInt(c, "offset", 0)

	logs, err := h.store.ListLogs(c.Request.Context(), limit, offset)
	if err != nil {
		slog.Error("failed to fetch logs", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetRoomLogs handles GET /api/logs/room/:roomId?limit=.
func (h *Handler) GetRoomLogs(c *gin.Context) {
	roomID := c.Param("roomId")
	limit := queryInt(c, "limit", store.DefaultRoomLogLimit)

	logs, err := h.store.LogsByRoom(c.Request.Context(), roomID, limit)
	if err != nil {
		slog.Error("failed to fetch room logs", "room", roomID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch room logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// SearchLogs handles GET /api/logs/search.
func (h *Handler) SearchLogs(c *gin.Context) {
	filters, err := parseLogFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	logs, err := h.store.SearchLogs(c.Request.Context(), filters)
	if err != nil {
		slog.Error("failed to search logs", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search logs"})
		return
	}
	c.JSON(http.StatusOK, logs)
}

// GetLogStats handles GET /api/logs/stats.
func (h *Handler) GetLogStats(c *gin.Context) {
	stats, err := h.store.LogStats(c.Request.Context())
	if err != nil {
		slog.Error("failed to fetch log stats", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

type createLogRequest struct {
	RoomID         sensor.RoomID    `json:"roomId" binding:"required"`
	RoomName       string           `json:"roomName"`
	Location       string           `json:"location"`
	Fire           bool             `json:"fire"`
	Flood          bool             `json:"flood"`
	Quake          bool             `json:"quake"`
	FloodLevel     int              `json:"floodLevel"`
	QuakeIntensity float64          `json:"quakeIntensity"`
	Temperature    *float64         `json:"temperature"`
	Humidity       *float64         `json:"humidity"`
	RSSI           *int             `json:"rssi"`
	Status         string           `json:"status"`
	EventType      string           `json:"eventType"`
	Message        string           `json:"message"`
	Timestamp      sensor.Timestamp `json:"timestamp"`
}

// CreateLog handles POST /api/logs, recording a manual log entry.
func (h *Handler) CreateLog(c *gin.Context) {
	var req createLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if req.Status == "" {
		req.Status = string(sensor.StatusNormal)
	}
	if req.EventType == "" {
		req.EventType = string(sensor.EventHeartbeat)
	}
	if !validStatus(req.Status) || !validEventType(req.EventType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status or eventType"})
		return
	}

	now := h.now()
	entry := model.SensorLog{
		RoomID:         string(req.RoomID),
		RoomName:       req.RoomName,
		Location:       req.Location,
		Fire:           req.Fire,
		Flood:          req.Flood,
		Quake:          req.Quake,
		FloodLevel:     req.FloodLevel,
		QuakeIntensity: req.QuakeIntensity,
		Temperature:    req.Temperature,
		Humidity:       req.Humidity,
		RSSI:           sensor.DefaultRSSI,
		Status:         req.Status,
		EventType:      req.EventType,
		Message:        req.Message,
		Timestamp:      now,
		CreatedAt:      now,
	}
	if req.RSSI != nil {
		entry.RSSI = *req.RSSI
	}
	if !req.Timestamp.IsZero() {
		entry.Timestamp = req.Timestamp.Time
	}
	if room, ok := h.rooms.Get(entry.RoomID); ok {
		if entry.RoomName == "" {
			entry.RoomName = room.Name
		}
		if entry.Location == "" {
			entry.Location = room.Location
		}
	}
	if entry.RoomName == "" {
		entry.RoomName = "Room " + entry.RoomID
	}

	if err := h.store.InsertSensorLog(c.Request.Context(), &entry); err != nil {
		slog.Error("failed to create log", "room", entry.RoomID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create log"})
		return
	}
	h.cache.Invalidate()
	c.JSON(http.StatusCreated, entry)
}

// ExportLogs handles GET /api/logs/export?format=xlsx|pdf with the search filters.
func (h *Handler) ExportLogs(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	filters, err := parseLogFilters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	logs, err := h.store.SearchLogs(c.Request.Context(), filters)
	if err != nil {
		metrics.ObserveExport(string(format), err, time.Since(start))
		slog.Error("failed to load logs for export", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export logs"})
		return
	}

	now := h.now()
	data, err := export.Render(format, export.Summarize(logs, describeFilters(filters), now), logs)
	metrics.ObserveExport(string(format), err, time.Since(start))
	if err != nil {
		slog.Error("failed to render export", "format", format, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export logs"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.Filename(now)))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func parseLogFilters(c *gin.Context) (store.LogFilters, error) {
	f := store.LogFilters{
		Search:    c.Query("search"),
		RoomID:    c.Query("roomId"),
		EventType: c.Query("eventType"),
		Status:    c.Query("status"),
	}
	var err error
	if f.StartDate, err = parseDate(c.Query("startDate"), false); err != nil {
		return f, fmt.Errorf("invalid startDate: %w", err)
	}
	if f.EndDate, err = parseDate(c.Query("endDate"), true); err != nil {
		return f, fmt.Errorf("invalid endDate: %w", err)
	}
	return f, nil
}

// parseDate accepts RFC3339 or a bare YYYY-MM-DD. A bare end date covers the whole day.
func parseDate(s string, endOfDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func describeFilters(f store.LogFilters) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("search", f.Search)
	add("room", f.RoomID)
	add("event", f.EventType)
	add("status", f.Status)
	if f.StartDate != nil {
		add("from", f.StartDate.Format(time.RFC3339))
	}
	if f.EndDate != nil {
		add("to", f.EndDate.Format(time.RFC3339))
	}
	return strings.Join(parts, " ")
}

// queryInt parses an integer query parameter, falling back to def when it is absent,
// malformed or not positive.
func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func validStatus(s string) bool {
	switch sensor.Status(s) {
	case sensor.StatusNormal, sensor.StatusWarning, sensor.StatusCritical:
		return true
	}
	return false
}

func validEventType(s string) bool {
	switch sensor.EventType(s) {
	case sensor.EventHeartbeat, sensor.EventAlert, sensor.EventWarning, sensor.EventCritical:
		return true
	}
	return false
}
