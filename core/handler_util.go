package core

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// respondCreateError maps CreateUser failures onto the error payload.
func respondCreateError(c *gin.Context, logger *zap.Logger, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", verr.Message)
	case errors.Is(err, ErrUsernameTaken):
		respondError(c, http.StatusBadRequest, "USERNAME_TAKEN", "Username already registered")
	default:
		logger.Error("failed to create user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to create user")
	}
}
