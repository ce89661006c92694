package handler

import (
	"net/http"

	"parking_market/internal/service"

	"github.com/gin-gonic/gin"
)

type SearchHandler struct {
	sessions *service.SessionService
}

func NewSearchHandler(sessions *service.SessionService) *SearchHandler {
	return &SearchHandler{sessions: sessions}
}

type SearchRequest struct {
	Query string `json:"query"`
}

type SelectResultRequest struct {
	Index *int `json:"index" binding:"required"`
}

// POST /api/v1/sessions/:id/search
// Geocoding runs after the debounce; results arrive over the WebSocket.
func (h *SearchHandler) SetQuery(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	view.Search().SetQuery(req.Query)
	c.JSON(http.StatusAccepted, view.Search().State())
}

// GET /api/v1/sessions/:id/search
func (h *SearchHandler) GetState(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Search().State())
}

// POST /api/v1/sessions/:id/search/select
func (h *SearchHandler) SelectResult(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	var req SelectResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if err := view.Search().Select(c.Request.Context(), *req.Index); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view.Snapshot())
}

// DELETE /api/v1/sessions/:id/search
func (h *SearchHandler) Dismiss(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	view.Search().Dismiss()
	c.Status(http.StatusNoContent)
}
