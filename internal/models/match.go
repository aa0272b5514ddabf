package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type MatchStatus string

const (
	MatchStatusWaiting   MatchStatus = "waiting"
	MatchStatusActive    MatchStatus = "active"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusTimeout   MatchStatus = "timeout"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// IsTerminal reports whether no further transition can leave this status.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusCompleted || s == MatchStatusTimeout || s == MatchStatusCancelled
}

func (s MatchStatus) Valid() bool {
	switch s {
	case MatchStatusWaiting, MatchStatusActive, MatchStatusCompleted, MatchStatusTimeout, MatchStatusCancelled:
		return true
	}
	return false
}

// FeeSchedule splits the prize pool. PrizePool = WinnerPayout + PlatformFee = 2 x EntryFee.
type FeeSchedule struct {
	EntryFee     decimal.Decimal `json:"entry_fee"`
	PrizePool    decimal.Decimal `json:"prize_pool"`
	WinnerPayout decimal.Decimal `json:"winner_payout"`
	PlatformFee  decimal.Decimal `json:"platform_fee"`
}

func NewFeeSchedule(entryFee, winnerPayout, platformFee decimal.Decimal) (FeeSchedule, error) {
	fees := FeeSchedule{
		EntryFee:     entryFee,
		PrizePool:    entryFee.Mul(decimal.NewFromInt(2)),
		WinnerPayout: winnerPayout,
		PlatformFee:  platformFee,
	}
	return fees, fees.Validate()
}

func (f FeeSchedule) Validate() error {
	if !f.EntryFee.IsPositive() {
		return fmt.Errorf("entry fee must be positive, got %s", f.EntryFee)
	}
	if f.WinnerPayout.IsNegative() || f.PlatformFee.IsNegative() {
		return fmt.Errorf("payout and platform fee must not be negative")
	}
	if !f.PrizePool.Equal(f.EntryFee.Mul(decimal.NewFromInt(2))) {
		return fmt.Errorf("prize pool %s must be twice the entry fee %s", f.PrizePool, f.EntryFee)
	}
	if !f.WinnerPayout.Add(f.PlatformFee).Equal(f.PrizePool) {
		return fmt.Errorf("winner payout %s + platform fee %s must equal prize pool %s",
			f.WinnerPayout, f.PlatformFee, f.PrizePool)
	}
	return nil
}

// Match is the flattened, serializable view of a match. The engine keeps the
// lifecycle as a tagged phase internally; this shape is used on the wire and
// in snapshots.
type Match struct {
	ID              string      `json:"id"`
	Player1ID       string      `json:"player1_id"`
	Player2ID       string      `json:"player2_id,omitempty"`
	Fees            FeeSchedule `json:"fees"`
	Status          MatchStatus `json:"status"`
	WinnerID        string      `json:"winner_id,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	StartTime       *time.Time  `json:"start_time,omitempty"`
	EndTime         *time.Time  `json:"end_time,omitempty"`
	DurationSeconds int64       `json:"duration_seconds"`
	GameState       GameState   `json:"game_state"`
}

func (m *Match) Duration() time.Duration {
	return time.Duration(m.DurationSeconds) * time.Second
}

// HasPlayer reports whether userID is one of the match players.
func (m *Match) HasPlayer(userID string) bool {
	return userID != "" && (m.Player1ID == userID || m.Player2ID == userID)
}

// Clone returns a deep copy safe to hand to other goroutines.
func (m Match) Clone() Match {
	out := m
	if m.StartTime != nil {
		t := *m.StartTime
		out.StartTime = &t
	}
	if m.EndTime != nil {
		t := *m.EndTime
		out.EndTime = &t
	}
	out.GameState = m.GameState.Clone()
	return out
}
