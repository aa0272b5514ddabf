package models

import "github.com/shopspring/decimal"

type RegisterUserRequest struct {
	ID             string          `json:"id"`
	Username       string          `json:"username" binding:"required"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

type EndMatchRequest struct {
	WinnerID string `json:"winner_id"`
}

type RecordShotRequest struct {
	ObjectsResolved []string `json:"objects_resolved"`
	Valid           bool     `json:"valid"`
	Points          int      `json:"points" binding:"min=0"`
}
