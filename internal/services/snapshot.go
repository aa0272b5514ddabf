package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/storage"
)

const (
	snapshotCurrentKey    = "snapshots/current"
	snapshotArchivePrefix = "snapshots/archive/"
)

// SnapshotRepository stores versioned snapshots in any key-value store.
// Besides the current snapshot it keeps the newest history archives.
type SnapshotRepository struct {
	store   storage.Store
	history int
}

func NewSnapshotRepository(store storage.Store, history int) *SnapshotRepository {
	return &SnapshotRepository{store: store, history: history}
}

func (r *SnapshotRepository) Save(ctx context.Context, snap *models.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	if err := r.store.Put(ctx, snapshotCurrentKey, payload); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	if r.history <= 0 {
		return nil
	}
	archiveKey := fmt.Sprintf("%s%020d", snapshotArchivePrefix, snap.SavedAt.UnixNano())
	if err := r.store.Put(ctx, archiveKey, payload); err != nil {
		return fmt.Errorf("failed to archive snapshot: %w", err)
	}
	return r.prune(ctx)
}

// Load returns the current snapshot, or storage.ErrNotFound.
func (r *SnapshotRepository) Load(ctx context.Context) (*models.Snapshot, error) {
	payload, err := r.store.Get(ctx, snapshotCurrentKey)
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.Version != models.SnapshotVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSnapshotVersion, snap.Version)
	}
	return &snap, nil
}

// Archives lists archive keys, oldest first.
func (r *SnapshotRepository) Archives(ctx context.Context) ([]string, error) {
	return r.store.List(ctx, snapshotArchivePrefix)
}

func (r *SnapshotRepository) prune(ctx context.Context) error {
	keys, err := r.Archives(ctx)
	if err != nil {
		return fmt.Errorf("failed to list archives: %w", err)
	}
	for len(keys) > r.history {
		if err := r.store.Delete(ctx, keys[0]); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("failed to prune archive %s: %w", keys[0], err)
		}
		keys = keys[1:]
	}
	return nil
}

// Persister copies the in-memory state into snapshots. The copy is taken
// under the ledger batch lock and written after the lock is released.
type Persister struct {
	repo    *SnapshotRepository
	clock   clockwork.Clock
	ledger  *Ledger
	users   *UserRegistry
	matches *MatchEngine

	dirty  atomic.Bool
	saveMu sync.Mutex
}

func NewPersister(repo *SnapshotRepository, clk clockwork.Clock, ledger *Ledger, users *UserRegistry, matches *MatchEngine) *Persister {
	return &Persister{
		repo:    repo,
		clock:   clk,
		ledger:  ledger,
		users:   users,
		matches: matches,
	}
}

func (p *Persister) MarkDirty() {
	p.dirty.Store(true)
}

func (p *Persister) Dirty() bool {
	return p.dirty.Load()
}

// Snapshot copies users, matches and the ledger as one consistent state.
func (p *Persister) Snapshot() *models.Snapshot {
	unfreeze := p.ledger.freeze()
	users := p.users.List()
	matches := p.matches.snapshot()
	ledger := p.ledger.snapshot()
	unfreeze()

	for i := range users {
		if balance, ok := ledger.balances[users[i].ID]; ok {
			users[i].WalletBalance = balance
		}
	}
	platform := ledger.balances[models.PlatformAccountID]

	return &models.Snapshot{
		Version:         models.SnapshotVersion,
		SavedAt:         p.clock.Now(),
		Users:           users,
		Matches:         matches,
		Transactions:    ledger.transactions,
		PlatformBalance: platform,
	}
}

// Save writes a snapshot unconditionally. On failure the state stays dirty
// so the next periodic save retries.
func (p *Persister) Save(ctx context.Context) error {
	p.saveMu.Lock()
	defer p.saveMu.Unlock()

	p.dirty.Store(false)
	snap := p.Snapshot()
	if err := p.repo.Save(ctx, snap); err != nil {
		p.dirty.Store(true)
		log.Printf("[PERSIST] save failed, will retry: %v", err)
		return err
	}
	log.Printf("[PERSIST] saved %d users, %d matches, %d transactions",
		len(snap.Users), len(snap.Matches), len(snap.Transactions))
	return nil
}

// SaveIfDirty saves only when something changed since the last save.
func (p *Persister) SaveIfDirty(ctx context.Context) (bool, error) {
	if !p.dirty.Load() {
		return false, nil
	}
	if err := p.Save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Restore hydrates every component from the current snapshot. It reports
// false when the store holds no snapshot yet.
func (p *Persister) Restore(ctx context.Context) (bool, error) {
	snap, err := p.repo.Load(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		log.Printf("[PERSIST] no snapshot found, starting empty")
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := p.apply(snap); err != nil {
		return false, fmt.Errorf("failed to restore snapshot: %w", err)
	}
	log.Printf("[PERSIST] restored snapshot from %s: %d users, %d matches, %d transactions",
		snap.SavedAt.Format("2006-01-02T15:04:05Z07:00"), len(snap.Users), len(snap.Matches), len(snap.Transactions))
	return true, nil
}

func (p *Persister) apply(snap *models.Snapshot) error {
	balances := make(map[string]decimal.Decimal, len(snap.Users)+1)
	for _, u := range snap.Users {
		if u.ID == models.PlatformAccountID {
			return fmt.Errorf("user id %q is reserved", u.ID)
		}
		if _, dup := balances[u.ID]; dup {
			return fmt.Errorf("duplicate user %s", u.ID)
		}
		balances[u.ID] = u.WalletBalance
	}
	balances[models.PlatformAccountID] = snap.PlatformBalance

	last := make(map[string]decimal.Decimal)
	for _, tx := range snap.Transactions {
		last[tx.UserID] = tx.BalanceAfter
	}
	for id, balance := range last {
		if stored, ok := balances[id]; ok && !stored.Equal(balance) {
			return fmt.Errorf("account %s balance %s does not match journal %s", id, stored, balance)
		}
	}

	recs, err := prepareRecords(snap.Matches)
	if err != nil {
		return err
	}

	unfreeze := p.ledger.freeze()
	defer unfreeze()

	if err := p.ledger.restore(balances, snap.Transactions); err != nil {
		return err
	}
	p.matches.install(recs)
	p.users.restore(snap.Users)
	p.dirty.Store(false)
	return nil
}
