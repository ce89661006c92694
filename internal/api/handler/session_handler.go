package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"parking_market/internal/api/middleware"
	"parking_market/internal/domain"
	"parking_market/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SessionHandler struct {
	sessions *service.SessionService
	logger   *logrus.Logger
}

func NewSessionHandler(sessions *service.SessionService, logger *logrus.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// CreateSessionRequest carries what the browser knows about the device
// location. Coordinates are only honoured with permission "granted".
type CreateSessionRequest struct {
	Permission string     `json:"permission"`
	Latitude   *float64   `json:"latitude"`
	Longitude  *float64   `json:"longitude"`
	Accuracy   float64    `json:"accuracy"`
	Timestamp  *time.Time `json:"timestamp"`
}

func (r CreateSessionRequest) positionSource() service.ReportedPosition {
	src := service.ReportedPosition{State: service.PermissionState(r.Permission)}
	if r.Latitude == nil || r.Longitude == nil {
		return src
	}
	if src.State == "" {
		src.State = service.PermissionGranted
	}
	pos := &service.Position{
		Coordinate: domain.Coordinate{Latitude: *r.Latitude, Longitude: *r.Longitude},
		Accuracy:   r.Accuracy,
		Timestamp:  time.Now(),
	}
	if r.Timestamp != nil {
		pos.Timestamp = *r.Timestamp
	}
	src.Position = pos
	return src
}

// POST /api/v1/sessions
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	// An empty body is allowed.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	view, err := h.sessions.Create(c.Request.Context(), req.positionSource())
	if err != nil {
		// The session exists with an empty list; the client can retry with refresh.
		h.logger.WithError(err).WithField("session_id", view.ID()).Warn("Initial load failed")
	}
	c.JSON(http.StatusCreated, view.Snapshot())
}

// GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

// DELETE /api/v1/sessions/:id
func (h *SessionHandler) CloseSession(c *gin.Context) {
	if err := h.sessions.Close(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// POST /api/v1/sessions/:id/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := view.Refresh(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

// PUT /api/v1/sessions/:id/viewport
func (h *SessionHandler) SetViewport(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var vp domain.Viewport
	if err := c.ShouldBindJSON(&vp); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid viewport", "details": err.Error()})
		return
	}
	view.SetViewport(vp)
	c.JSON(http.StatusOK, view.Snapshot())
}

// PUT /api/v1/sessions/:id/filters
func (h *SessionHandler) SetFilters(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	filters := domain.DefaultFilterState()
	if err := c.ShouldBindJSON(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filters", "details": err.Error()})
		return
	}
	if filters.MinPrice < 0 || filters.MaxPrice < filters.MinPrice {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid price range"})
		return
	}
	view.SetFilters(filters)
	c.JSON(http.StatusOK, view.Snapshot())
}

// POST /api/v1/sessions/:id/selection/:space_id
func (h *SessionHandler) Select(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	space, err := view.Select(domain.SpaceID(c.Param("space_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, space)
}

// DELETE /api/v1/sessions/:id/selection
func (h *SessionHandler) Deselect(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	view.Deselect()
	c.Status(http.StatusNoContent)
}

// GET /api/v1/sessions/:id/route/:space_id
func (h *SessionHandler) Route(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	route, err := view.Route(c.Request.Context(), domain.SpaceID(c.Param("space_id")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, route)
}

// GET /api/v1/sessions/:id/notifications
func (h *SessionHandler) Notifications(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": view.Notifier().Drain()})
}

// POST /api/v1/sessions/:id/bookings/:space_id
func (h *SessionHandler) StartBooking(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	handoff, err := view.BookingHandoff(domain.SpaceID(c.Param("space_id")), user)
	if err != nil {
		respondError(c, err)
		return
	}
	h.logger.WithFields(logrus.Fields{
		"session_id": view.ID(),
		"space_id":   handoff.SpaceID,
		"user_id":    handoff.UserID,
	}).Info("Booking handoff")
	c.JSON(http.StatusOK, handoff)
}

// POST /api/v1/sessions/:id/details/:space_id
func (h *SessionHandler) OpenDetail(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	handoff, err := view.DetailHandoff(domain.SpaceID(c.Param("space_id")), user)
	if err != nil {
		respondError(c, err)
		return
	}
	detail := h.sessions.OpenDetail(view.ID(), handoff)
	c.JSON(http.StatusCreated, detail.Snapshot())
}

// GET /api/v1/details/:id
func (h *SessionHandler) GetDetail(c *gin.Context) {
	detail, err := h.sessions.GetDetail(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail.Snapshot())
}

// DELETE /api/v1/details/:id
func (h *SessionHandler) CloseDetail(c *gin.Context) {
	if err := h.sessions.CloseDetail(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Snapshot resolves a buyer session or detail view for the WebSocket handler.
func (h *SessionHandler) Snapshot(id string) (interface{}, bool) {
	if view, err := h.sessions.Get(id); err == nil {
		return view.Snapshot(), true
	}
	if detail, err := h.sessions.GetDetail(id); err == nil {
		return detail.Snapshot(), true
	}
	return nil, false
}
