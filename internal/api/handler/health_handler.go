package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatusReporter contributes a named section to the health report.
type StatusReporter func() interface{}

type HealthHandler struct {
	reporters map[string]StatusReporter
}

func NewHealthHandler(reporters map[string]StatusReporter) *HealthHandler {
	return &HealthHandler{reporters: reporters}
}

// GET /healthz
func (h *HealthHandler) Health(c *gin.Context) {
	report := gin.H{"status": "ok"}
	for name, fn := range h.reporters {
		report[name] = fn()
	}
	c.JSON(http.StatusOK, report)
}
