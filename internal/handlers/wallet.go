package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/services"
)

type WalletHandler struct {
	ledger *services.Ledger
}

func NewWalletHandler(ledger *services.Ledger) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

func (h *WalletHandler) GetBalance(c *gin.Context) {
	userID := c.GetString("user_id")

	balance, err := h.ledger.BalanceOf(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.BalanceResponse{UserID: userID, Balance: balance})
}

func (h *WalletHandler) GetTransactions(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	txs, err := h.ledger.TransactionsFor(c.GetString("user_id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": txs,
		"count":        len(txs),
	})
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	var req models.WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tx, err := h.ledger.Deposit(c.GetString("user_id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

func (h *WalletHandler) Withdraw(c *gin.Context) {
	var req models.WalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	tx, err := h.ledger.Withdraw(c.GetString("user_id"), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}
