package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stakeduel-backend/internal/services"
)

// respondError maps service errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Internal error"

	switch {
	case errors.Is(err, services.ErrInsufficientFunds):
		status, message = http.StatusPaymentRequired, "Insufficient funds"
	case errors.Is(err, services.ErrMatchNotFound),
		errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrAccountNotFound):
		status, message = http.StatusNotFound, "Not found"
	case errors.Is(err, services.ErrInvalidTransition),
		errors.Is(err, services.ErrSelfJoin),
		errors.Is(err, services.ErrUserExists),
		errors.Is(err, services.ErrAccountExists),
		errors.Is(err, services.ErrNotYourTurn):
		status, message = http.StatusConflict, "Conflict"
	case errors.Is(err, services.ErrNotParticipant):
		status, message = http.StatusForbidden, "Forbidden"
	case errors.Is(err, services.ErrInvalidWinner),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidKind),
		errors.Is(err, services.ErrInvalidInput):
		status, message = http.StatusBadRequest, "Invalid request"
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}
