package handler

import (
	"net/http"
	"time"

	"parking_market/internal/service"

	"github.com/gin-gonic/gin"
)

type TimeWindowHandler struct {
	sessions *service.SessionService
}

func NewTimeWindowHandler(sessions *service.SessionService) *TimeWindowHandler {
	return &TimeWindowHandler{sessions: sessions}
}

type TimeBoundRequest struct {
	Time *time.Time `json:"time" binding:"required"`
}

// PUT /api/v1/sessions/:id/time-window/:bound
func (h *TimeWindowHandler) SetBound(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req TimeBoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	switch c.Param("bound") {
	case "start":
		view.TimeFilter().SetStart(*req.Time)
	case "end":
		view.TimeFilter().SetEnd(*req.Time)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "bound must be start or end"})
		return
	}
	c.JSON(http.StatusOK, view.TimeFilter().State())
}

// POST /api/v1/sessions/:id/time-window/apply
func (h *TimeWindowHandler) Apply(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := view.TimeFilter().Apply(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "session": view.Snapshot()})
}

// DELETE /api/v1/sessions/:id/time-window
func (h *TimeWindowHandler) Clear(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	count, err := view.TimeFilter().Clear(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "session": view.Snapshot()})
}
