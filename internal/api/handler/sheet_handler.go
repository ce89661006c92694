package handler

import (
	"errors"
	"io"
	"net/http"

	"parking_market/internal/service"

	"github.com/gin-gonic/gin"
)

type SheetHandler struct {
	sessions *service.SessionService
}

func NewSheetHandler(sessions *service.SessionService) *SheetHandler {
	return &SheetHandler{sessions: sessions}
}

type PointerRequest struct {
	PointerID int     `json:"pointer_id"`
	Y         float64 `json:"y"`
}

// POST /api/v1/sessions/:id/sheets/:sheet/:action
func (h *SheetHandler) Action(c *gin.Context) {
	view, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	s, err := view.Sheet(c.Param("sheet"))
	if err != nil {
		respondError(c, err)
		return
	}

	var req PointerRequest
	// An empty body is allowed.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	switch c.Param("action") {
	case "open":
		s.Open()
	case "close":
		s.Close()
	case "down":
		err = s.PointerDown(req.PointerID, req.Y)
	case "move":
		err = s.PointerMove(req.PointerID, req.Y)
	case "up":
		err = s.PointerUp(req.PointerID)
	case "cancel":
		err = s.PointerCancel(req.PointerID)
	case "settle":
		s.Settle()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown sheet action"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.Snapshot())
}
