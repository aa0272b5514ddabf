package models_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
)

func TestModels(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	if id := models.GenerateMatchID(now); id == "" {
		t.Error("Match ID should not be empty")
	}

	fees, err := models.NewFeeSchedule(decimal.NewFromInt(10), decimal.NewFromInt(16), decimal.NewFromInt(4))
	if err != nil {
		t.Fatalf("Fee schedule should be valid: %v", err)
	}
	if !fees.PrizePool.Equal(decimal.NewFromInt(20)) {
		t.Errorf("Expected prize pool 20, got %s", fees.PrizePool)
	}

	if _, err := models.NewFeeSchedule(decimal.NewFromInt(10), decimal.NewFromInt(15), decimal.NewFromInt(4)); err == nil {
		t.Error("Unbalanced fee schedule should fail validation")
	}

	if _, err := models.NewFeeSchedule(decimal.Zero, decimal.Zero, decimal.Zero); err == nil {
		t.Error("Zero entry fee should fail validation")
	}

	req := &models.RegisterUserRequest{Username: "alice", InitialBalance: decimal.NewFromInt(100)}
	if err := req.Validate(); err != nil {
		t.Errorf("RegisterUserRequest validation failed: %v", err)
	}

	reserved := &models.RegisterUserRequest{ID: models.PlatformAccountID, Username: "mallory"}
	if err := reserved.Validate(); err == nil {
		t.Error("Reserved platform id should fail validation")
	}

	shot := &models.RecordShotRequest{Valid: false, Points: 3}
	if err := shot.Validate(); err == nil {
		t.Error("Invalid shot with points should fail validation")
	}
}

func TestGameState(t *testing.T) {
	state := models.NewGameState("p1", 3*time.Minute)

	if state.CurrentTurn != "p1" {
		t.Errorf("Expected player1 to start, got %s", state.CurrentTurn)
	}
	if len(state.RemainingObjects) != 19 {
		t.Errorf("Expected 19 starting objects, got %d", len(state.RemainingObjects))
	}
	if state.TimeRemainingSeconds != 180 {
		t.Errorf("Expected 180 seconds remaining, got %d", state.TimeRemainingSeconds)
	}

	clone := state.Clone()
	clone.RemainingObjects[0] = "changed"
	if state.RemainingObjects[0] == "changed" {
		t.Error("Clone should not share the object slice")
	}
}

func TestWinRate(t *testing.T) {
	u := &models.User{GamesPlayed: 4, GamesWon: 1}
	u.RecomputeWinRate()
	if u.WinRate != 0.25 {
		t.Errorf("Expected win rate 0.25, got %f", u.WinRate)
	}

	empty := &models.User{}
	empty.RecomputeWinRate()
	if empty.WinRate != 0 {
		t.Errorf("Expected win rate 0 with no games, got %f", empty.WinRate)
	}
}
