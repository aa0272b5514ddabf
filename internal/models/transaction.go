package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type TransactionKind string

const (
	TransactionKindEntryFee     TransactionKind = "entry_fee"
	TransactionKindWinnerPayout TransactionKind = "winner_payout"
	TransactionKindServerFee    TransactionKind = "server_fee"
	TransactionKindDeposit      TransactionKind = "deposit"
	TransactionKindWithdrawal   TransactionKind = "withdrawal"
	TransactionKindRefund       TransactionKind = "refund"
)

// IsDebit reports whether the kind removes funds from an account.
func (k TransactionKind) IsDebit() bool {
	return k == TransactionKindEntryFee || k == TransactionKindWithdrawal
}

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindEntryFee, TransactionKindWinnerPayout, TransactionKindServerFee,
		TransactionKindDeposit, TransactionKindWithdrawal, TransactionKindRefund:
		return true
	}
	return false
}

type TransactionStatus string

const TransactionStatusCompleted TransactionStatus = "completed"

// PlatformAccountID is the reserved ledger account that accumulates platform fees.
const PlatformAccountID = "platform"

// Transaction is an immutable ledger entry. Amount is signed: debits are
// negative. BalanceAfter always equals BalanceBefore + Amount.
type Transaction struct {
	ID            string            `json:"id"`
	Seq           int64             `json:"seq"`
	UserID        string            `json:"user_id"`
	Kind          TransactionKind   `json:"kind"`
	Amount        decimal.Decimal   `json:"amount"`
	BalanceBefore decimal.Decimal   `json:"balance_before"`
	BalanceAfter  decimal.Decimal   `json:"balance_after"`
	MatchID       string            `json:"match_id,omitempty"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// MatchAudit sums a match's ledger entries per kind.
type MatchAudit struct {
	MatchID     string          `json:"match_id"`
	EntryFees   decimal.Decimal `json:"entry_fees"`
	Payout      decimal.Decimal `json:"payout"`
	Refunds     decimal.Decimal `json:"refunds"`
	PlatformFee decimal.Decimal `json:"platform_fee"`
	// Unawarded is the part of the entry fees no credit accounts for.
	Unawarded   decimal.Decimal `json:"unawarded"`
	Balanced    bool            `json:"balanced"`
}
