package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"conversation-service/internal/services"
)

func statusFromError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrInvalidOperation):
		return http.StatusConflict
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError hides internal failures behind a generic message.
func respondError(c *gin.Context, err error, fallback string) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": fallback})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
