package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/storage"
	"stakeduel-backend/internal/storage/memory"
)

type flakyStore struct {
	storage.Store
	fail bool
}

func (s *flakyStore) Put(ctx context.Context, key string, value []byte) error {
	if s.fail {
		return errors.New("disk full")
	}
	return s.Store.Put(ctx, key, value)
}

func requireSameJSON(t *testing.T, want, got interface{}) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	require.JSONEq(t, string(w), string(g))
}

// populate leaves one match in each lifecycle state.
func populate(t *testing.T, a *testArena) {
	t.Helper()
	won := a.activeMatch(t)
	a.clock.Advance(30 * time.Second)
	_, err := a.Matches.RecordShot(won.ID, "alice", &models.RecordShotRequest{
		ObjectsResolved: []string{"queen"}, Valid: true, Points: 50,
	})
	require.NoError(t, err)
	_, err = a.Matches.EndMatch(won.ID, "alice")
	require.NoError(t, err)

	timedOut, err := a.Matches.CreateMatch("bob")
	require.NoError(t, err)
	_, err = a.Matches.JoinMatch(timedOut.ID, "alice")
	require.NoError(t, err)
	a.clock.Advance(3 * time.Minute)
	a.awaitStatus(t, timedOut.ID, models.MatchStatusTimeout)

	a.register(t, "carol", "50")
	cancelled, err := a.Matches.CreateMatch("carol")
	require.NoError(t, err)
	_, err = a.Matches.CancelMatch(cancelled.ID, "carol")
	require.NoError(t, err)

	_, err = a.Matches.CreateMatch("carol")
	require.NoError(t, err)

	active, err := a.Matches.CreateMatch("alice")
	require.NoError(t, err)
	_, err = a.Matches.JoinMatch(active.ID, "bob")
	require.NoError(t, err)
	a.clock.Advance(10 * time.Second)

	require.NoError(t, a.Users.MarkVerified("carol"))
}

func TestSnapshotRoundTrip(t *testing.T) {
	store := memory.New()
	clk := clockwork.NewFakeClockAt(testStart)
	a := newTestArenaWith(t, store, clk)
	populate(t, a)

	before := a.Persister.Snapshot()
	require.NoError(t, a.Persister.Save(context.Background()))
	a.Timers.Stop()

	b := newTestArenaWith(t, store, clockwork.NewFakeClockAt(clk.Now()))
	restored, err := b.Persister.Restore(context.Background())
	require.NoError(t, err)
	require.True(t, restored)

	after := b.Persister.Snapshot()
	requireSameJSON(t, before.Users, after.Users)
	requireSameJSON(t, before.Matches, after.Matches)
	requireSameJSON(t, before.Transactions, after.Transactions)
	assert.True(t, before.PlatformBalance.Equal(after.PlatformBalance))
	assert.Equal(t, "8", after.PlatformBalance.String())

	alice, err := b.Users.Get("alice")
	require.NoError(t, err)
	assert.Equal(t, 0.5, alice.WinRate)
	carol, _ := b.Users.Get("carol")
	assert.True(t, carol.IsVerified)

	for _, m := range after.Matches {
		if m.StartTime != nil {
			assert.Equal(t, time.UTC, m.StartTime.Location())
		}
		assert.True(t, b.Ledger.AuditMatch(m.ID).Balanced || !m.Status.IsTerminal())
	}

	_, err = b.Ledger.Deposit("alice", dec("1"))
	require.NoError(t, err)
	txs := b.Ledger.Transactions()
	assert.Equal(t, int64(len(txs)), txs[len(txs)-1].Seq, "sequence continues after restore")
}

func TestRestoreReconcilesOverdueMatches(t *testing.T) {
	store := memory.New()
	clk := clockwork.NewFakeClockAt(testStart)
	a := newTestArenaWith(t, store, clk)
	m := a.activeMatch(t)
	a.register(t, "carol", "100")
	waiting, err := a.Matches.CreateMatch("carol")
	require.NoError(t, err)
	require.NoError(t, a.Persister.Save(context.Background()))
	a.Timers.Stop()

	later := clockwork.NewFakeClockAt(testStart.Add(5 * time.Minute))
	b := newTestArenaWith(t, store, later)
	require.NoError(t, b.Restore(context.Background()))

	got, err := b.Matches.GetMatch(m.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MatchStatusTimeout, got.Status)
	assert.True(t, b.Ledger.AuditMatch(m.ID).Balanced)
	assert.Equal(t, "98", b.balance(t, "alice"))

	got, _ = b.Matches.GetMatch(waiting.ID)
	assert.Equal(t, models.MatchStatusWaiting, got.Status)
	assert.Equal(t, 1, b.Timers.Pending())

	later.Advance(5 * time.Minute)
	b.awaitStatus(t, waiting.ID, models.MatchStatusCancelled)
	assert.Equal(t, "100", b.balance(t, "carol"))
}

func TestReconcileReschedulesActiveMatch(t *testing.T) {
	store := memory.New()
	a := newTestArenaWith(t, store, clockwork.NewFakeClockAt(testStart))
	m := a.activeMatch(t)
	require.NoError(t, a.Persister.Save(context.Background()))
	a.Timers.Stop()

	later := clockwork.NewFakeClockAt(testStart.Add(time.Minute))
	b := newTestArenaWith(t, store, later)
	require.NoError(t, b.Restore(context.Background()))

	got, _ := b.Matches.GetMatch(m.ID)
	assert.Equal(t, models.MatchStatusActive, got.Status)
	assert.Equal(t, int64(120), got.GameState.TimeRemainingSeconds)

	later.Advance(2 * time.Minute)
	b.awaitStatus(t, m.ID, models.MatchStatusTimeout)
}

func TestRestoreWithEmptyStore(t *testing.T) {
	a := newTestArena(t)
	restored, err := a.Persister.Restore(context.Background())
	require.NoError(t, err)
	assert.False(t, restored)
}

func TestSaveIfDirty(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()

	saved, err := a.Persister.SaveIfDirty(ctx)
	require.NoError(t, err)
	assert.False(t, saved)

	a.register(t, "alice", "100")
	assert.True(t, a.Persister.Dirty())

	saved, err = a.Persister.SaveIfDirty(ctx)
	require.NoError(t, err)
	assert.True(t, saved)
	assert.False(t, a.Persister.Dirty())

	saved, err = a.Persister.SaveIfDirty(ctx)
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestSaveFailureKeepsStateAndDirtyFlag(t *testing.T) {
	store := &flakyStore{Store: memory.New(), fail: true}
	a := newTestArenaWith(t, store, clockwork.NewFakeClockAt(testStart))
	m := a.activeMatch(t)

	err := a.Persister.Save(context.Background())
	require.Error(t, err)
	assert.True(t, a.Persister.Dirty())

	got, _ := a.Matches.GetMatch(m.ID)
	assert.Equal(t, models.MatchStatusActive, got.Status)
	assert.Equal(t, "90", a.balance(t, "alice"))

	store.fail = false
	saved, err := a.Persister.SaveIfDirty(context.Background())
	require.NoError(t, err)
	assert.True(t, saved)
}

func TestSnapshotArchivesArePruned(t *testing.T) {
	a := newTestArena(t)
	ctx := context.Background()
	a.register(t, "alice", "100")

	for i := 0; i < 5; i++ {
		a.clock.Advance(time.Second)
		require.NoError(t, a.Persister.Save(ctx))
	}

	repo := NewSnapshotRepository(a.store, 3)
	archives, err := repo.Archives(ctx)
	require.NoError(t, err)
	require.Len(t, archives, 3)
	assert.Contains(t, archives[2], "snapshots/archive/")

	snap, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, a.clock.Now(), snap.SavedAt)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Put(context.Background(), snapshotCurrentKey, []byte(`{"version":99}`)))

	_, err := NewSnapshotRepository(store, 0).Load(context.Background())
	assert.ErrorIs(t, err, ErrUnsupportedSnapshotVersion)
}

func TestRestoreRejectsInconsistentBalances(t *testing.T) {
	store := memory.New()
	a := newTestArenaWith(t, store, clockwork.NewFakeClockAt(testStart))
	a.register(t, "alice", "100")
	snap := a.Persister.Snapshot()
	snap.Users[0].WalletBalance = dec("1000")
	require.NoError(t, NewSnapshotRepository(store, 0).Save(context.Background(), snap))

	b := newTestArenaWith(t, store, clockwork.NewFakeClockAt(testStart))
	_, err := b.Persister.Restore(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, b.Users.Count())
}

func TestRestoreRejectsMatchWithoutDuration(t *testing.T) {
	store := memory.New()
	a := newTestArenaWith(t, store, clockwork.NewFakeClockAt(testStart))
	a.activeMatch(t)
	snap := a.Persister.Snapshot()
	snap.Matches[0].DurationSeconds = 0
	require.NoError(t, NewSnapshotRepository(store, 0).Save(context.Background(), snap))

	b := newTestArenaWith(t, store, clockwork.NewFakeClockAt(testStart))
	_, err := b.Persister.Restore(context.Background())
	assert.Error(t, err)
	assert.Empty(t, b.Matches.ListMatches(""))
	assert.Equal(t, 0, b.Users.Count())
}
