package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stakeduel-backend/internal/services"
)

// AdminHandler serves the developer dashboard. Non-developers get the same
// 200 response shape with zero values.
type AdminHandler struct {
	analytics *services.Analytics
}

func NewAdminHandler(analytics *services.Analytics) *AdminHandler {
	return &AdminHandler{analytics: analytics}
}

func (h *AdminHandler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stats": h.analytics.GetAdminStats(c.GetString("contact"))})
}

func (h *AdminHandler) GetPlatformBalance(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"platform_balance": h.analytics.GetPlatformBalance(c.GetString("contact"))})
}
