package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"parking_market/internal/realtime"
	"parking_market/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxIngestBody = 64 << 10

type RealtimeHandler struct {
	sink     realtime.Sink
	eventLog repository.RealtimeEventLogRepository
	logger   *logrus.Logger
}

// NewRealtimeHandler serves the realtime ingest and audit endpoints.
// eventLog may be nil when the audit log is disabled.
func NewRealtimeHandler(sink realtime.Sink, eventLog repository.RealtimeEventLogRepository, logger *logrus.Logger) *RealtimeHandler {
	return &RealtimeHandler{sink: sink, eventLog: eventLog, logger: logger}
}

// POST /api/v1/realtime/events
// Accepts the same {"event", "data"} envelope as the socket feed.
func (h *RealtimeHandler) Ingest(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBody))
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Empty or unreadable body"})
		return
	}
	if err := h.sink.Publish(c.Request.Context(), "http", body); err != nil {
		if errors.Is(err, realtime.ErrHubStopped) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Event accepted"})
}

// GET /api/v1/realtime/events?space_id=&limit=
func (h *RealtimeHandler) ListEvents(c *gin.Context) {
	if h.eventLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime audit log is disabled"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		limit = n
	}

	events, err := h.eventLog.FindRecent(c.Request.Context(), c.Query("space_id"), limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list realtime events")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list realtime events"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GET /api/v1/realtime/events/:event_id
func (h *RealtimeHandler) GetEvent(c *gin.Context) {
	if h.eventLog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Realtime audit log is disabled"})
		return
	}
	id, err := strconv.ParseInt(c.Param("event_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event ID"})
		return
	}
	entry, err := h.eventLog.FindByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}
