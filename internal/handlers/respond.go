package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"quizblitz-service/internal/models"
)

// respondError maps domain sentinels to HTTP statuses. Anything outside
// the taxonomy is a 500; state stays consistent because every mutation
// behind it is a single atomic document write.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrRoomNotFound),
		errors.Is(err, models.ErrSessionNotFound),
		errors.Is(err, models.ErrAccessCodeInvalid),
		errors.Is(err, models.ErrNoQuestions):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrQuizAlreadyStarted),
		errors.Is(err, models.ErrInvalidPlayerID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrDuplicateCode),
		errors.Is(err, models.ErrAlreadyAnswered),
		errors.Is(err, models.ErrQuestionClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
