package models

import "github.com/shopspring/decimal"

type WindowedRevenue struct {
	Day   decimal.Decimal `json:"day"`
	Week  decimal.Decimal `json:"week"`
	Month decimal.Decimal `json:"month"`
}

type WindowedCount struct {
	Day   int `json:"day"`
	Week  int `json:"week"`
	Month int `json:"month"`
}

// AdminStats is the developer dashboard payload. The zero value is what
// unauthorized callers receive.
type AdminStats struct {
	TotalUsers                  int             `json:"total_users"`
	WaitingMatches              int             `json:"waiting_matches"`
	ActiveMatches               int             `json:"active_matches"`
	CompletedMatches            int             `json:"completed_matches"`
	TimedOutMatches             int             `json:"timed_out_matches"`
	CancelledMatches            int             `json:"cancelled_matches"`
	PlatformBalance             decimal.Decimal `json:"platform_balance"`
	Revenue                     WindowedRevenue `json:"revenue"`
	AverageMatchDurationSeconds float64         `json:"average_match_duration_seconds"`
	Registrations               WindowedCount   `json:"registrations"`
}
