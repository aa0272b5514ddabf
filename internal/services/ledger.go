package services

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
)

// Ledger owns every balance and the append-only transaction journal. It is
// the only component that changes a balance.
//
// Lock order: batch -> Ledger.mu (read) -> account.mu -> Ledger.journalMu.
// Operations never hold two account locks at once.
type Ledger struct {
	clock clockwork.Clock

	// batch is held shared by every multi-step operation that touches the
	// ledger together with user or match records, and exclusively while a
	// persistence snapshot is copied.
	batch sync.RWMutex

	mu       sync.RWMutex
	accounts map[string]*account

	onChange func()

	journalMu sync.Mutex
	journal   []*models.Transaction
	seq       int64
}

type account struct {
	mu      sync.Mutex
	id      string
	balance decimal.Decimal
	history []*models.Transaction
}

func NewLedger(clk clockwork.Clock) *Ledger {
	l := &Ledger{
		clock:    clk,
		accounts: make(map[string]*account),
	}
	l.accounts[models.PlatformAccountID] = &account{id: models.PlatformAccountID}
	return l
}

// OnChange registers a hook invoked after every committed transaction. It
// must be set before the ledger is shared.
func (l *Ledger) OnChange(fn func()) {
	l.onChange = fn
}

// Open creates an empty account.
func (l *Ledger) Open(accountID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.accounts[accountID]; exists {
		return fmt.Errorf("%w: %s", ErrAccountExists, accountID)
	}
	l.accounts[accountID] = &account{id: accountID}
	return nil
}

func (l *Ledger) HasAccount(accountID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[accountID]
	return ok
}

// Debit subtracts a positive amount. It fails with ErrInsufficientFunds,
// leaving no trace, when the balance would go negative.
func (l *Ledger) Debit(accountID string, amount decimal.Decimal, kind models.TransactionKind, matchID string) (*models.Transaction, error) {
	if !kind.IsDebit() {
		return nil, fmt.Errorf("%w: %s is not a debit", ErrInvalidKind, kind)
	}
	return l.apply(accountID, amount, kind, matchID, true)
}

// Credit adds a positive amount.
func (l *Ledger) Credit(accountID string, amount decimal.Decimal, kind models.TransactionKind, matchID string) (*models.Transaction, error) {
	if !kind.Valid() || kind.IsDebit() {
		return nil, fmt.Errorf("%w: %s is not a credit", ErrInvalidKind, kind)
	}
	return l.apply(accountID, amount, kind, matchID, false)
}

func (l *Ledger) apply(accountID string, amount decimal.Decimal, kind models.TransactionKind, matchID string, debit bool) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	acc, err := l.account(accountID)
	if err != nil {
		return nil, err
	}

	acc.mu.Lock()
	defer acc.mu.Unlock()

	signed := amount
	if debit {
		signed = amount.Neg()
	}
	after := acc.balance.Add(signed)
	if after.IsNegative() {
		return nil, fmt.Errorf("%w: balance %s, need %s", ErrInsufficientFunds, acc.balance, amount)
	}

	now := l.clock.Now()
	tx := &models.Transaction{
		ID:            models.GenerateTransactionID(now),
		UserID:        accountID,
		Kind:          kind,
		Amount:        signed,
		BalanceBefore: acc.balance,
		BalanceAfter:  after,
		MatchID:       matchID,
		Status:        models.TransactionStatusCompleted,
		CreatedAt:     now,
	}

	acc.balance = after
	acc.history = append(acc.history, tx)

	l.journalMu.Lock()
	l.seq++
	tx.Seq = l.seq
	l.journal = append(l.journal, tx)
	l.journalMu.Unlock()

	out := *tx
	if l.onChange != nil {
		l.onChange()
	}
	return &out, nil
}

// Deposit credits a wallet top-up.
func (l *Ledger) Deposit(accountID string, amount decimal.Decimal) (*models.Transaction, error) {
	if accountID == models.PlatformAccountID {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return l.Credit(accountID, amount, models.TransactionKindDeposit, "")
}

// Withdraw debits a wallet payout. It never overdraws.
func (l *Ledger) Withdraw(accountID string, amount decimal.Decimal) (*models.Transaction, error) {
	if accountID == models.PlatformAccountID {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return l.Debit(accountID, amount, models.TransactionKindWithdrawal, "")
}

func (l *Ledger) begin() func() {
	l.batch.RLock()
	return l.batch.RUnlock
}

func (l *Ledger) freeze() func() {
	l.batch.Lock()
	return l.batch.Unlock
}

func (l *Ledger) BalanceOf(accountID string) (decimal.Decimal, error) {
	acc, err := l.account(accountID)
	if err != nil {
		return decimal.Zero, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.balance, nil
}

func (l *Ledger) PlatformBalance() decimal.Decimal {
	balance, _ := l.BalanceOf(models.PlatformAccountID)
	return balance
}

// TransactionsFor returns an account's transactions, most recent first.
// A non-positive limit returns all of them.
func (l *Ledger) TransactionsFor(accountID string, limit int) ([]models.Transaction, error) {
	acc, err := l.account(accountID)
	if err != nil {
		return nil, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	n := len(acc.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.Transaction, 0, n)
	for i := len(acc.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *acc.history[i])
	}
	return out, nil
}

// Transactions returns the whole journal in sequence order.
func (l *Ledger) Transactions() []models.Transaction {
	l.journalMu.Lock()
	defer l.journalMu.Unlock()
	out := make([]models.Transaction, len(l.journal))
	for i, tx := range l.journal {
		out[i] = *tx
	}
	return out
}

// MatchTransactions returns the journal entries tagged with matchID.
func (l *Ledger) MatchTransactions(matchID string) []models.Transaction {
	l.journalMu.Lock()
	defer l.journalMu.Unlock()
	var out []models.Transaction
	for _, tx := range l.journal {
		if tx.MatchID == matchID {
			out = append(out, *tx)
		}
	}
	return out
}

// AuditMatch sums a match's entries and checks that every entry fee collected
// was paid out, refunded or taken as platform fee.
func (l *Ledger) AuditMatch(matchID string) models.MatchAudit {
	audit := models.MatchAudit{
		MatchID:     matchID,
		EntryFees:   decimal.Zero,
		Payout:      decimal.Zero,
		Refunds:     decimal.Zero,
		PlatformFee: decimal.Zero,
	}
	for _, tx := range l.MatchTransactions(matchID) {
		switch tx.Kind {
		case models.TransactionKindEntryFee:
			audit.EntryFees = audit.EntryFees.Add(tx.Amount.Abs())
		case models.TransactionKindWinnerPayout:
			audit.Payout = audit.Payout.Add(tx.Amount)
		case models.TransactionKindRefund:
			audit.Refunds = audit.Refunds.Add(tx.Amount)
		case models.TransactionKindServerFee:
			audit.PlatformFee = audit.PlatformFee.Add(tx.Amount)
		}
	}
	audit.Unawarded = audit.EntryFees.Sub(audit.Payout).Sub(audit.Refunds).Sub(audit.PlatformFee)
	audit.Balanced = audit.Unawarded.IsZero()
	return audit
}

// ledgerState is a consistent copy of balances and journal.
type ledgerState struct {
	balances     map[string]decimal.Decimal
	transactions []models.Transaction
}

func (l *Ledger) snapshot() ledgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := make([]string, 0, len(l.accounts))
	for id := range l.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	// Hold every account lock so no mutation lands between the balance
	// copy and the journal copy.
	for _, id := range ids {
		l.accounts[id].mu.Lock()
	}
	defer func() {
		for _, id := range ids {
			l.accounts[id].mu.Unlock()
		}
	}()

	state := ledgerState{balances: make(map[string]decimal.Decimal, len(ids))}
	for _, id := range ids {
		state.balances[id] = l.accounts[id].balance
	}
	state.transactions = l.Transactions()
	return state
}

// restore replaces all ledger state. Transactions must be in sequence order.
func (l *Ledger) restore(balances map[string]decimal.Decimal, transactions []models.Transaction) error {
	accounts := map[string]*account{
		models.PlatformAccountID: {id: models.PlatformAccountID},
	}
	for id, balance := range balances {
		if balance.IsNegative() {
			return fmt.Errorf("account %s has negative balance %s", id, balance)
		}
		accounts[id] = &account{id: id, balance: balance}
	}

	journal := make([]*models.Transaction, 0, len(transactions))
	var seq int64
	for i := range transactions {
		tx := transactions[i]
		if !tx.BalanceBefore.Add(tx.Amount).Equal(tx.BalanceAfter) || tx.BalanceAfter.IsNegative() {
			return fmt.Errorf("transaction %s breaks balance arithmetic", tx.ID)
		}
		if tx.Seq <= seq {
			return fmt.Errorf("transaction %s out of sequence", tx.ID)
		}
		seq = tx.Seq
		acc, ok := accounts[tx.UserID]
		if !ok {
			return fmt.Errorf("transaction %s references unknown account %s", tx.ID, tx.UserID)
		}
		acc.history = append(acc.history, &tx)
		journal = append(journal, &tx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.journalMu.Lock()
	defer l.journalMu.Unlock()
	l.accounts = accounts
	l.journal = journal
	l.seq = seq
	return nil
}

func (l *Ledger) account(accountID string) (*account, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	acc, ok := l.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, accountID)
	}
	return acc, nil
}
