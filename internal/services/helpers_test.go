package services

import (
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/storage"
	"stakeduel-backend/internal/storage/memory"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingBroadcaster struct {
	mu     sync.Mutex
	events []models.MatchEvent
}

func (r *recordingBroadcaster) BroadcastMatchEvent(event models.MatchEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingBroadcaster) types() []models.MatchEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MatchEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type testArena struct {
	*Arena
	clock  *clockwork.FakeClock
	events *recordingBroadcaster
	store  storage.Store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func testFees(t *testing.T) models.FeeSchedule {
	t.Helper()
	fees, err := models.NewFeeSchedule(dec("10"), dec("16"), dec("4"))
	require.NoError(t, err)
	return fees
}

func newTestArena(t *testing.T) *testArena {
	t.Helper()
	return newTestArenaWith(t, memory.New(), clockwork.NewFakeClockAt(testStart))
}

func newTestArenaWith(t *testing.T, store storage.Store, clk *clockwork.FakeClock, tweaks ...func(*ArenaOptions)) *testArena {
	t.Helper()
	events := &recordingBroadcaster{}
	opts := ArenaOptions{
		Clock:             clk,
		Store:             store,
		Broadcaster:       events,
		Fees:              testFees(t),
		MatchDuration:     3 * time.Minute,
		WaitingTimeout:    10 * time.Minute,
		SnapshotHistory:   3,
		DeveloperContacts: []string{"dev@stakeduel.test"},
	}
	for _, tweak := range tweaks {
		tweak(&opts)
	}
	arena, err := NewArena(opts)
	require.NoError(t, err)
	t.Cleanup(arena.Timers.Stop)
	return &testArena{Arena: arena, clock: clk, events: events, store: store}
}

func (a *testArena) register(t *testing.T, id, balance string) *models.User {
	t.Helper()
	user, err := a.Users.Register(&models.RegisterUserRequest{
		ID:             id,
		Username:       id,
		Email:          id + "@stakeduel.test",
		InitialBalance: dec(balance),
	})
	require.NoError(t, err)
	return user
}

func (a *testArena) balance(t *testing.T, id string) string {
	t.Helper()
	b, err := a.Ledger.BalanceOf(id)
	require.NoError(t, err)
	return b.String()
}

// activeMatch registers alice and bob with 100 each and starts a match.
func (a *testArena) activeMatch(t *testing.T) *models.Match {
	t.Helper()
	a.register(t, "alice", "100")
	a.register(t, "bob", "100")
	m, err := a.Matches.CreateMatch("alice")
	require.NoError(t, err)
	m, err = a.Matches.JoinMatch(m.ID, "bob")
	require.NoError(t, err)
	return m
}

// awaitStatus waits for a timer callback released by the fake clock to
// settle the match.
func (a *testArena) awaitStatus(t *testing.T, matchID string, want models.MatchStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		m, err := a.Matches.GetMatch(matchID)
		return err == nil && m.Status == want
	}, time.Second, time.Millisecond)
}

func (a *testArena) awaitEvent(t *testing.T, want models.MatchEventType) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, got := range a.events.types() {
			if got == want {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func countKind(txs []models.Transaction, kind models.TransactionKind) int {
	n := 0
	for _, tx := range txs {
		if tx.Kind == kind {
			n++
		}
	}
	return n
}
