package services

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
)

// UserRegistry holds profile and stats records. Balances live in the Ledger;
// views returned from here carry the ledger balance at read time.
type UserRegistry struct {
	clock  clockwork.Clock
	ledger *Ledger

	mu    sync.RWMutex
	users map[string]*models.User

	onChange func()
}

func NewUserRegistry(clk clockwork.Clock, ledger *Ledger) *UserRegistry {
	return &UserRegistry{
		clock:  clk,
		ledger: ledger,
		users:  make(map[string]*models.User),
	}
}

// OnChange registers a hook invoked after every profile or stats change.
func (r *UserRegistry) OnChange(fn func()) {
	r.onChange = fn
}

func (r *UserRegistry) Register(req *models.RegisterUserRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	done := r.ledger.begin()
	defer done()

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = models.GenerateUserID()
	}
	now := r.clock.Now()

	r.mu.Lock()
	if _, exists := r.users[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUserExists, id)
	}
	if err := r.ledger.Open(id); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	user := &models.User{
		ID:            id,
		Phone:         strings.TrimSpace(req.Phone),
		Email:         strings.TrimSpace(req.Email),
		Username:      strings.TrimSpace(req.Username),
		WalletBalance: decimal.Zero,
		TotalEarnings: decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	r.users[id] = user
	r.mu.Unlock()

	if req.InitialBalance.IsPositive() {
		if _, err := r.ledger.Credit(id, req.InitialBalance, models.TransactionKindDeposit, ""); err != nil {
			return nil, fmt.Errorf("failed to fund new account: %w", err)
		}
	}

	r.changed()
	log.Printf("[USERS] registered %s (%s)", id, user.Username)
	return r.Get(id)
}

func (r *UserRegistry) Get(id string) (*models.User, error) {
	r.mu.RLock()
	user, ok := r.users[id]
	var out models.User
	if ok {
		out = *user
	}
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	r.withBalance(&out)
	return &out, nil
}

func (r *UserRegistry) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.users[id]
	return ok
}

// List returns every user ordered by creation time, then id.
func (r *UserRegistry) List() []models.User {
	r.mu.RLock()
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	r.mu.RUnlock()

	for i := range out {
		r.withBalance(&out[i])
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (r *UserRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *UserRegistry) MarkVerified(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	user.IsVerified = true
	user.UpdatedAt = r.clock.Now()
	r.changed()
	return nil
}

// RecordResult bumps a player's stats after a match resolves.
func (r *UserRegistry) RecordResult(id string, won bool, earnings decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	user.GamesPlayed++
	if won {
		user.GamesWon++
		user.TotalEarnings = user.TotalEarnings.Add(earnings)
	}
	user.RecomputeWinRate()
	user.UpdatedAt = r.clock.Now()
	r.changed()
	return nil
}

func (r *UserRegistry) changed() {
	if r.onChange != nil {
		r.onChange()
	}
}

func (r *UserRegistry) withBalance(u *models.User) {
	if balance, err := r.ledger.BalanceOf(u.ID); err == nil {
		u.WalletBalance = balance
	}
}

// restore replaces every user record. Ledger accounts are restored separately.
func (r *UserRegistry) restore(users []models.User) {
	next := make(map[string]*models.User, len(users))
	for i := range users {
		u := users[i]
		u.RecomputeWinRate()
		next[u.ID] = &u
	}
	r.mu.Lock()
	r.users = next
	r.mu.Unlock()
}
