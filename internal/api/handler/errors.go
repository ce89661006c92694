package handler

import (
	"errors"
	"net/http"

	"parking_market/internal/client"
	"parking_market/internal/domain"
	"parking_market/internal/repository"
	"parking_market/internal/service"
	"parking_market/internal/sheet"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Message, "code": verr.Code})
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrDetailNotFound),
		errors.Is(err, domain.ErrSpaceNotFound),
		errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, client.ErrNoRoute):
		c.JSON(http.StatusNotFound, gin.H{"error": "No route found to this parking space"})
	case errors.Is(err, service.ErrUnknownSheet),
		errors.Is(err, service.ErrInvalidSearchResult):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sheet.ErrClosed),
		errors.Is(err, service.ErrFetchSuperseded),
		errors.Is(err, sheet.ErrNotDragging),
		errors.Is(err, sheet.ErrPointerNotOwn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, client.ErrUpstream),
		errors.Is(err, client.ErrMapsProvider):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Upstream service unavailable", "details": err.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
