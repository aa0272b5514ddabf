package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID       string `json:"id"`
	Phone    string `json:"phone,omitempty"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username"`

	// WalletBalance mirrors the ledger account. It is only authoritative in
	// snapshots; live reads go through the ledger.
	WalletBalance decimal.Decimal `json:"wallet_balance"`
	IsVerified    bool            `json:"is_verified"`

	GamesPlayed   int             `json:"games_played"`
	GamesWon      int             `json:"games_won"`
	WinRate       float64         `json:"win_rate"`
	TotalEarnings decimal.Decimal `json:"total_earnings"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecomputeWinRate derives WinRate from the game counters.
func (u *User) RecomputeWinRate() {
	if u.GamesPlayed == 0 {
		u.WinRate = 0
		return
	}
	u.WinRate = float64(u.GamesWon) / float64(u.GamesPlayed)
}
