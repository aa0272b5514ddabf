package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func GenerateUserID() string {
	return fmt.Sprintf("user_%s", uuid.New().String())
}

func GenerateMatchID(now time.Time) string {
	return fmt.Sprintf("match_%s_%d",
		now.Format("20060102"),
		uuid.New().ID())
}

func GenerateTransactionID(now time.Time) string {
	return fmt.Sprintf("tx_%s_%s",
		now.Format("20060102"),
		uuid.New().String())
}

func (r *RegisterUserRequest) Validate() error {
	if strings.TrimSpace(r.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if r.InitialBalance.IsNegative() {
		return fmt.Errorf("initial balance must not be negative")
	}
	if strings.TrimSpace(r.ID) == PlatformAccountID {
		return fmt.Errorf("user id %q is reserved", PlatformAccountID)
	}
	return nil
}

func (r *RecordShotRequest) Validate() error {
	if r.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	if !r.Valid && r.Points > 0 {
		return fmt.Errorf("an invalid shot cannot score points")
	}
	return nil
}

// FormatCurrency renders an amount with two decimal places.
func FormatCurrency(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
