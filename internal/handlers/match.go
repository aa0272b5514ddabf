package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/services"
)

type MatchHandler struct {
	matches *services.MatchEngine
	ledger  *services.Ledger
}

func NewMatchHandler(matches *services.MatchEngine, ledger *services.Ledger) *MatchHandler {
	return &MatchHandler{
		matches: matches,
		ledger:  ledger,
	}
}

func (h *MatchHandler) CreateMatch(c *gin.Context) {
	match, err := h.matches.CreateMatch(c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"match":     match,
		"entry_fee": models.FormatCurrency(match.Fees.EntryFee),
	})
}

// ListMatches lists matches, filtered by ?status= or ?mine=true.
func (h *MatchHandler) ListMatches(c *gin.Context) {
	var matches []models.Match
	if c.Query("mine") == "true" {
		matches = h.matches.MatchesFor(c.GetString("user_id"))
	} else {
		status := models.MatchStatus(c.Query("status"))
		if status != "" && !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown status"})
			return
		}
		matches = h.matches.ListMatches(status)
	}

	c.JSON(http.StatusOK, gin.H{
		"matches": matches,
		"count":   len(matches),
	})
}

func (h *MatchHandler) GetMatch(c *gin.Context) {
	match, err := h.matches.GetMatch(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (h *MatchHandler) JoinMatch(c *gin.Context) {
	match, err := h.matches.JoinMatch(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

// EndMatch is reported by one of the players. An empty body ends the match
// without a winner.
func (h *MatchHandler) EndMatch(c *gin.Context) {
	var req models.EndMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, err)
		return
	}

	if !h.isPlayer(c) {
		return
	}

	match, err := h.matches.EndMatch(c.Param("id"), req.WinnerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (h *MatchHandler) RecordShot(c *gin.Context) {
	var req models.RecordShotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	match, err := h.matches.RecordShot(c.Param("id"), c.GetString("user_id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (h *MatchHandler) CancelMatch(c *gin.Context) {
	match, err := h.matches.CancelMatch(c.Param("id"), c.GetString("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

func (h *MatchHandler) AuditMatch(c *gin.Context) {
	if !h.isPlayer(c) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"audit": h.ledger.AuditMatch(c.Param("id"))})
}

func (h *MatchHandler) isPlayer(c *gin.Context) bool {
	match, err := h.matches.GetMatch(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return false
	}
	if !match.HasPlayer(c.GetString("user_id")) {
		respondError(c, services.ErrNotParticipant)
		return false
	}
	return true
}
