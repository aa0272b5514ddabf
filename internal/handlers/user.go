package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/services"
)

type UserHandler struct {
	users          *services.UserRegistry
	initialBalance decimal.Decimal
}

func NewUserHandler(users *services.UserRegistry, initialBalance decimal.Decimal) *UserHandler {
	return &UserHandler{
		users:          users,
		initialBalance: initialBalance,
	}
}

// Register creates the profile for the authenticated identity.
func (h *UserHandler) Register(c *gin.Context) {
	var req models.RegisterUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	req.ID = c.GetString("user_id")
	req.InitialBalance = h.initialBalance
	if req.Email == "" && req.Phone == "" {
		req.Email = c.GetString("contact")
	}

	user, err := h.users.Register(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user})
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.users.Get(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"balance": models.FormatCurrency(user.WalletBalance),
	})
}
