package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"stakeduel-backend/internal/models"
	"stakeduel-backend/internal/storage"
)

type ArenaOptions struct {
	Clock             clockwork.Clock
	Store             storage.Store
	Broadcaster       Broadcaster
	Fees              models.FeeSchedule
	MatchDuration     time.Duration
	WaitingTimeout    time.Duration
	NoWinnerPolicy    string
	SnapshotHistory   int
	DeveloperContacts []string
}

// Arena wires the core components for one process.
type Arena struct {
	Clock     clockwork.Clock
	Ledger    *Ledger
	Users     *UserRegistry
	Timers    *TimerScheduler
	Matches   *MatchEngine
	Analytics *Analytics
	Persister *Persister

	scheduler gocron.Scheduler
}

func NewArena(opts ArenaOptions) (*Arena, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("a snapshot store is required")
	}

	ledger := NewLedger(clk)
	users := NewUserRegistry(clk, ledger)
	timers := NewTimerScheduler(clk)
	matches, err := NewMatchEngine(clk, ledger, users, timers, opts.Broadcaster, MatchEngineConfig{
		Fees:           opts.Fees,
		MatchDuration:  opts.MatchDuration,
		WaitingTimeout: opts.WaitingTimeout,
		NoWinnerPolicy: opts.NoWinnerPolicy,
	})
	if err != nil {
		return nil, err
	}

	persister := NewPersister(NewSnapshotRepository(opts.Store, opts.SnapshotHistory), clk, ledger, users, matches)
	ledger.OnChange(persister.MarkDirty)
	users.OnChange(persister.MarkDirty)
	matches.OnChange(persister.MarkDirty)

	return &Arena{
		Clock:     clk,
		Ledger:    ledger,
		Users:     users,
		Timers:    timers,
		Matches:   matches,
		Analytics: NewAnalytics(clk, ledger, users, matches, opts.DeveloperContacts),
		Persister: persister,
	}, nil
}

// Restore loads the last snapshot and settles matches that ran out while the
// process was down.
func (a *Arena) Restore(ctx context.Context) error {
	if _, err := a.Persister.Restore(ctx); err != nil {
		return err
	}
	a.Matches.Reconcile(true)
	return nil
}

// Start runs the periodic save and reconcile jobs.
func (a *Arena) Start(saveInterval, reconcileInterval time.Duration) error {
	sched, err := gocron.NewScheduler(gocron.WithClock(a.Clock))
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(saveInterval),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), saveInterval)
			defer cancel()
			if _, err := a.Persister.SaveIfDirty(ctx); err != nil {
				log.Printf("[Scheduler] snapshot save failed: %v", err)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule snapshot job: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(reconcileInterval),
		gocron.NewTask(func() {
			a.Matches.Reconcile(false)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile job: %w", err)
	}

	sched.Start()
	a.scheduler = sched
	log.Printf("[Scheduler] started: save every %s, reconcile every %s", saveInterval, reconcileInterval)
	return nil
}

// Shutdown stops background work and writes a final snapshot.
func (a *Arena) Shutdown(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			log.Printf("[Scheduler] shutdown: %v", err)
		}
	}
	a.Timers.Stop()
	return a.Persister.Save(ctx)
}
