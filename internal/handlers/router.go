package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/middleware"
	"stakeduel-backend/internal/services"
)

type RouterOptions struct {
	Arena          *services.Arena
	JWT            *services.JWTService
	Hub            *WebSocketHub
	RateLimiter    middleware.RateLimiter
	RateLimit      int
	CORSOrigins    []string
	InitialBalance decimal.Decimal
}

func NewRouter(opts RouterOptions) *gin.Engine {
	arena := opts.Arena

	userHandler := NewUserHandler(arena.Users, opts.InitialBalance)
	walletHandler := NewWalletHandler(arena.Ledger)
	matchHandler := NewMatchHandler(arena.Matches, arena.Ledger)
	adminHandler := NewAdminHandler(arena.Analytics)

	router := gin.Default()
	router.Use(middleware.CORSMiddleware(opts.CORSOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(opts.JWT))
	protected.Use(middleware.RateLimitMiddleware(opts.RateLimiter, opts.RateLimit))
	{
		protected.POST("/users", userHandler.Register)
		protected.GET("/me", userHandler.GetCurrentUser)

		if opts.Hub != nil {
			wsHandler := NewWebSocketHandler(opts.Hub, arena.Ledger)
			protected.GET("/ws", wsHandler.HandleWebSocket)
		}

		wallet := protected.Group("/wallet")
		{
			wallet.GET("/balance", walletHandler.GetBalance)
			wallet.GET("/transactions", walletHandler.GetTransactions)
			wallet.POST("/deposit", walletHandler.Deposit)
			wallet.POST("/withdraw", walletHandler.Withdraw)
		}

		matches := protected.Group("/matches")
		{
			matches.POST("", matchHandler.CreateMatch)
			matches.GET("", matchHandler.ListMatches)
			matches.GET("/:id", matchHandler.GetMatch)
			matches.POST("/:id/join", matchHandler.JoinMatch)
			matches.POST("/:id/end", matchHandler.EndMatch)
			matches.POST("/:id/shots", matchHandler.RecordShot)
			matches.POST("/:id/cancel", matchHandler.CancelMatch)
			matches.GET("/:id/audit", matchHandler.AuditMatch)
		}

		admin := protected.Group("/admin")
		{
			admin.GET("/stats", adminHandler.GetStats)
			admin.GET("/platform-balance", adminHandler.GetPlatformBalance)
		}
	}

	return router
}
