package models

import "github.com/shopspring/decimal"

type BalanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

type WalletRequest struct {
	Amount decimal.Decimal `json:"amount"`
}
