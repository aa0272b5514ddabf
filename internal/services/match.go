package services

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
)

// No-winner policies decide what happens to the winner payout of a match
// that ends without a winner.
const (
	NoWinnerRefund  = "refund"
	NoWinnerFeeOnly = "fee_only"
)

type MatchEngineConfig struct {
	Fees           models.FeeSchedule
	MatchDuration  time.Duration
	WaitingTimeout time.Duration
	// NoWinnerPolicy defaults to NoWinnerRefund.
	NoWinnerPolicy string
}

// MatchEngine owns match records and their lifecycle. It moves money only
// through the Ledger.
type MatchEngine struct {
	clock       clockwork.Clock
	ledger      *Ledger
	users       *UserRegistry
	timers      *TimerScheduler
	broadcaster Broadcaster
	cfg         MatchEngineConfig

	mu      sync.RWMutex
	matches map[string]*matchRecord

	onChange func()
}

func NewMatchEngine(clk clockwork.Clock, ledger *Ledger, users *UserRegistry, timers *TimerScheduler, broadcaster Broadcaster, cfg MatchEngineConfig) (*MatchEngine, error) {
	if err := cfg.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fee schedule: %w", err)
	}
	if cfg.MatchDuration <= 0 {
		return nil, fmt.Errorf("match duration must be positive")
	}
	switch cfg.NoWinnerPolicy {
	case "":
		cfg.NoWinnerPolicy = NoWinnerRefund
	case NoWinnerRefund, NoWinnerFeeOnly:
	default:
		return nil, fmt.Errorf("unknown no-winner policy %q", cfg.NoWinnerPolicy)
	}
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &MatchEngine{
		clock:       clk,
		ledger:      ledger,
		users:       users,
		timers:      timers,
		broadcaster: broadcaster,
		cfg:         cfg,
		matches:     make(map[string]*matchRecord),
	}, nil
}

// OnChange registers a hook invoked after every match mutation.
func (e *MatchEngine) OnChange(fn func()) {
	e.onChange = fn
}

func (e *MatchEngine) Fees() models.FeeSchedule {
	return e.cfg.Fees
}

// CreateMatch debits player1's entry fee and opens a waiting match. No match
// exists if the debit fails.
func (e *MatchEngine) CreateMatch(player1ID string) (*models.Match, error) {
	if !e.users.Exists(player1ID) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, player1ID)
	}
	view, err := e.createMatch(player1ID)
	if err != nil {
		return nil, err
	}
	e.publish(models.EventMatchCreated, view)
	return &view, nil
}

func (e *MatchEngine) createMatch(player1ID string) (models.Match, error) {
	done := e.ledger.begin()
	defer done()

	now := e.clock.Now()
	id := models.GenerateMatchID(now)

	if _, err := e.ledger.Debit(player1ID, e.cfg.Fees.EntryFee, models.TransactionKindEntryFee, id); err != nil {
		return models.Match{}, fmt.Errorf("failed to collect entry fee: %w", err)
	}

	rec := &matchRecord{
		id:        id,
		fees:      e.cfg.Fees,
		duration:  e.cfg.MatchDuration,
		createdAt: now,
		phase:     waitingPhase{player1: player1ID},
		state:     models.NewGameState(player1ID, e.cfg.MatchDuration),
	}

	e.mu.Lock()
	e.matches[id] = rec
	e.mu.Unlock()

	rec.mu.Lock()
	e.scheduleWaitingExpiry(rec, e.cfg.WaitingTimeout)
	view := rec.view(now)
	rec.mu.Unlock()

	log.Printf("[MATCH] %s created by %s, entry fee %s", id, player1ID, e.cfg.Fees.EntryFee)
	return view, nil
}

// JoinMatch debits player2 and starts the match clock. Any failed
// precondition leaves the match untouched.
func (e *MatchEngine) JoinMatch(matchID, player2ID string) (*models.Match, error) {
	rec, err := e.record(matchID)
	if err != nil {
		return nil, err
	}
	if !e.users.Exists(player2ID) {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, player2ID)
	}
	view, err := e.joinMatch(rec, player2ID)
	if err != nil {
		return nil, err
	}
	e.publish(models.EventMatchJoined, view)
	return &view, nil
}

func (e *MatchEngine) joinMatch(rec *matchRecord, player2ID string) (models.Match, error) {
	done := e.ledger.begin()
	defer done()

	matchID := rec.id
	rec.mu.Lock()
	waiting, ok := rec.phase.(waitingPhase)
	if !ok {
		status := rec.phase.status()
		rec.mu.Unlock()
		return models.Match{}, fmt.Errorf("%w: match %s is %s", ErrInvalidTransition, matchID, status)
	}
	if waiting.player1 == player2ID {
		rec.mu.Unlock()
		return models.Match{}, ErrSelfJoin
	}
	if _, err := e.ledger.Debit(player2ID, rec.fees.EntryFee, models.TransactionKindEntryFee, matchID); err != nil {
		rec.mu.Unlock()
		return models.Match{}, fmt.Errorf("failed to collect entry fee: %w", err)
	}

	now := e.clock.Now()
	rec.phase = activePhase{player1: waiting.player1, player2: player2ID, startTime: now}
	rec.state.TimeRemainingSeconds = int64(rec.duration / time.Second)
	e.scheduleTimeout(rec, rec.duration)
	view := rec.view(now)
	rec.mu.Unlock()

	log.Printf("[MATCH] %s joined by %s, ends in %s", matchID, player2ID, rec.duration)
	return view, nil
}

// EndMatch resolves an active match. Only the first resolution of a match
// moves money; later calls fail with ErrInvalidTransition and change nothing.
func (e *MatchEngine) EndMatch(matchID, winnerID string) (*models.Match, error) {
	rec, err := e.record(matchID)
	if err != nil {
		return nil, err
	}
	view, err := e.endMatch(rec, winnerID)
	if err != nil {
		return nil, err
	}
	e.publish(models.EventMatchEnded, view)
	return &view, nil
}

func (e *MatchEngine) endMatch(rec *matchRecord, winnerID string) (models.Match, error) {
	done := e.ledger.begin()
	defer done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	active, ok := rec.phase.(activePhase)
	if !ok {
		return models.Match{}, fmt.Errorf("%w: match %s is %s", ErrInvalidTransition, rec.id, rec.phase.status())
	}
	if winnerID != "" && winnerID != active.player1 && winnerID != active.player2 {
		return models.Match{}, fmt.Errorf("%w: %s", ErrInvalidWinner, winnerID)
	}

	e.timers.Cancel(rec.id)
	e.resolve(rec, active, models.MatchStatusCompleted, winnerID)
	return rec.view(e.clock.Now()), nil
}

// handleTimeout is the match-duration timer callback.
func (e *MatchEngine) handleTimeout(matchID string) {
	rec, err := e.record(matchID)
	if err != nil {
		return
	}
	if view, ok := e.timeoutMatch(rec); ok {
		e.publish(models.EventMatchTimeout, view)
	}
}

func (e *MatchEngine) timeoutMatch(rec *matchRecord) (models.Match, bool) {
	done := e.ledger.begin()
	defer done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	active, ok := rec.phase.(activePhase)
	if !ok {
		return models.Match{}, false
	}
	e.timers.Cancel(rec.id)
	e.resolve(rec, active, models.MatchStatusTimeout, "")
	return rec.view(e.clock.Now()), true
}

// resolve settles an active match. Callers hold rec.mu and have checked the
// phase, which makes this the single settlement of the match.
func (e *MatchEngine) resolve(rec *matchRecord, active activePhase, outcome models.MatchStatus, winnerID string) {
	now := e.clock.Now()
	start := active.startTime
	rec.state.TimeRemainingSeconds = remainingSeconds(start, rec.duration, now)
	rec.phase = terminalPhase{
		outcome:   outcome,
		player1:   active.player1,
		player2:   active.player2,
		winner:    winnerID,
		startTime: &start,
		endTime:   now,
	}

	if winnerID != "" {
		e.credit(winnerID, rec.fees.WinnerPayout, models.TransactionKindWinnerPayout, rec.id)
	} else if e.cfg.NoWinnerPolicy == NoWinnerRefund {
		share1, share2 := splitRefund(rec.fees.WinnerPayout)
		e.credit(active.player1, share1, models.TransactionKindRefund, rec.id)
		e.credit(active.player2, share2, models.TransactionKindRefund, rec.id)
	}
	e.credit(models.PlatformAccountID, rec.fees.PlatformFee, models.TransactionKindServerFee, rec.id)

	for _, playerID := range []string{active.player1, active.player2} {
		won := playerID == winnerID
		earnings := decimal.Zero
		if won {
			earnings = rec.fees.WinnerPayout
		}
		if err := e.users.RecordResult(playerID, won, earnings); err != nil {
			log.Printf("[MATCH] %s: failed to record result for %s: %v", rec.id, playerID, err)
		}
	}

	switch {
	case winnerID != "":
		log.Printf("[MATCH] %s %s, winner %s paid %s", rec.id, outcome, winnerID, rec.fees.WinnerPayout)
	case e.cfg.NoWinnerPolicy == NoWinnerRefund:
		log.Printf("[MATCH] %s %s without winner, payout refunded", rec.id, outcome)
	default:
		log.Printf("[MATCH] %s %s without winner, payout withheld", rec.id, outcome)
	}
}

// RecordShot appends an already-judged shot by the player whose turn it is.
// The turn passes unless the shot was valid and resolved an object.
func (e *MatchEngine) RecordShot(matchID, playerID string, req *models.RecordShotRequest) (*models.Match, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	rec, err := e.record(matchID)
	if err != nil {
		return nil, err
	}

	rec.mu.Lock()
	active, ok := rec.phase.(activePhase)
	if !ok {
		status := rec.phase.status()
		rec.mu.Unlock()
		return nil, fmt.Errorf("%w: match %s is %s", ErrInvalidTransition, matchID, status)
	}
	if playerID != active.player1 && playerID != active.player2 {
		rec.mu.Unlock()
		return nil, ErrNotParticipant
	}
	if rec.state.CurrentTurn != playerID {
		rec.mu.Unlock()
		return nil, ErrNotYourTurn
	}

	now := e.clock.Now()
	resolved := make([]string, 0, len(req.ObjectsResolved))
	remaining := make(map[string]bool, len(rec.state.RemainingObjects))
	for _, obj := range rec.state.RemainingObjects {
		remaining[obj] = true
	}
	for _, obj := range req.ObjectsResolved {
		if remaining[obj] {
			resolved = append(resolved, obj)
			delete(remaining, obj)
		}
	}
	left := make([]string, 0, len(remaining))
	for _, obj := range rec.state.RemainingObjects {
		if remaining[obj] {
			left = append(left, obj)
		}
	}

	rec.state.Shots = append(rec.state.Shots, models.Shot{
		PlayerID:        playerID,
		Timestamp:       now,
		ObjectsResolved: resolved,
		Valid:           req.Valid,
		Points:          req.Points,
	})
	rec.state.RemainingObjects = left
	if playerID == active.player1 {
		rec.state.Player1Score += req.Points
	} else {
		rec.state.Player2Score += req.Points
	}
	if !req.Valid || len(resolved) == 0 {
		if playerID == active.player1 {
			rec.state.CurrentTurn = active.player2
		} else {
			rec.state.CurrentTurn = active.player1
		}
	}
	rec.state.TimeRemainingSeconds = remainingSeconds(active.startTime, rec.duration, now)
	view := rec.view(now)
	rec.mu.Unlock()

	e.publish(models.EventShotRecorded, view)
	return &view, nil
}

// CancelMatch lets the creator withdraw a match nobody has joined yet.
func (e *MatchEngine) CancelMatch(matchID, requesterID string) (*models.Match, error) {
	rec, err := e.record(matchID)
	if err != nil {
		return nil, err
	}
	view, err := e.cancelMatch(rec, requesterID)
	if err != nil {
		return nil, err
	}
	e.publish(models.EventMatchCancelled, view)
	return &view, nil
}

func (e *MatchEngine) cancelMatch(rec *matchRecord, requesterID string) (models.Match, error) {
	done := e.ledger.begin()
	defer done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	waiting, ok := rec.phase.(waitingPhase)
	if !ok {
		return models.Match{}, fmt.Errorf("%w: match %s is %s", ErrInvalidTransition, rec.id, rec.phase.status())
	}
	if waiting.player1 != requesterID {
		return models.Match{}, ErrNotParticipant
	}
	e.timers.Cancel(rec.id)
	e.cancelWaiting(rec, waiting, "cancelled by creator")
	return rec.view(e.clock.Now()), nil
}

// expireWaiting is the waiting-expiry timer callback.
func (e *MatchEngine) expireWaiting(matchID string) {
	rec, err := e.record(matchID)
	if err != nil {
		return
	}
	if view, ok := e.expireMatch(rec); ok {
		e.publish(models.EventMatchCancelled, view)
	}
}

func (e *MatchEngine) expireMatch(rec *matchRecord) (models.Match, bool) {
	done := e.ledger.begin()
	defer done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	waiting, ok := rec.phase.(waitingPhase)
	if !ok {
		return models.Match{}, false
	}
	e.timers.Cancel(rec.id)
	e.cancelWaiting(rec, waiting, "no opponent joined")
	return rec.view(e.clock.Now()), true
}

// cancelWaiting refunds the creator. Callers hold rec.mu.
func (e *MatchEngine) cancelWaiting(rec *matchRecord, waiting waitingPhase, reason string) {
	rec.phase = terminalPhase{
		outcome: models.MatchStatusCancelled,
		player1: waiting.player1,
		endTime: e.clock.Now(),
	}
	e.credit(waiting.player1, rec.fees.EntryFee, models.TransactionKindRefund, rec.id)
	log.Printf("[MATCH] %s cancelled: %s", rec.id, reason)
}

func (e *MatchEngine) GetMatch(matchID string) (*models.Match, error) {
	rec, err := e.record(matchID)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now()
	rec.mu.Lock()
	view := rec.view(now)
	rec.mu.Unlock()
	return &view, nil
}

// ListMatches returns matches newest first. An empty status lists all.
func (e *MatchEngine) ListMatches(status models.MatchStatus) []models.Match {
	return e.filter(func(m *models.Match) bool {
		return status == "" || m.Status == status
	})
}

// MatchesFor returns the matches userID plays in, newest first.
func (e *MatchEngine) MatchesFor(userID string) []models.Match {
	return e.filter(func(m *models.Match) bool {
		return m.HasPlayer(userID)
	})
}

func (e *MatchEngine) filter(keep func(*models.Match) bool) []models.Match {
	out := make([]models.Match, 0)
	for _, m := range e.views() {
		if keep(&m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// views copies every match. Records are locked one at a time.
func (e *MatchEngine) views() []models.Match {
	e.mu.RLock()
	recs := make([]*matchRecord, 0, len(e.matches))
	for _, rec := range e.matches {
		recs = append(recs, rec)
	}
	e.mu.RUnlock()

	now := e.clock.Now()
	out := make([]models.Match, 0, len(recs))
	for _, rec := range recs {
		rec.mu.Lock()
		out = append(out, rec.view(now))
		rec.mu.Unlock()
	}
	return out
}

// Reconcile resolves overdue matches and, when reschedule is set, arms timers
// for the rest. It returns how many matches it resolved.
func (e *MatchEngine) Reconcile(reschedule bool) int {
	e.mu.RLock()
	recs := make([]*matchRecord, 0, len(e.matches))
	for _, rec := range e.matches {
		recs = append(recs, rec)
	}
	e.mu.RUnlock()

	now := e.clock.Now()
	resolved := 0
	for _, rec := range recs {
		rec.mu.Lock()
		var overdue bool
		switch p := rec.phase.(type) {
		case activePhase:
			deadline := p.startTime.Add(rec.duration)
			if !now.Before(deadline) {
				overdue = true
			} else if reschedule {
				e.scheduleTimeout(rec, deadline.Sub(now))
			}
		case waitingPhase:
			if e.cfg.WaitingTimeout <= 0 {
				break
			}
			deadline := rec.createdAt.Add(e.cfg.WaitingTimeout)
			if !now.Before(deadline) {
				overdue = true
			} else if reschedule {
				e.scheduleWaitingExpiry(rec, deadline.Sub(now))
			}
		}
		status := rec.phase.status()
		rec.mu.Unlock()

		if !overdue {
			continue
		}
		if status == models.MatchStatusActive {
			e.handleTimeout(rec.id)
		} else {
			e.expireWaiting(rec.id)
		}
		resolved++
	}

	if resolved > 0 {
		log.Printf("[MATCH] reconciled %d overdue matches", resolved)
	}
	return resolved
}

// Callers hold rec.mu.
func (e *MatchEngine) scheduleTimeout(rec *matchRecord, delay time.Duration) {
	id := rec.id
	e.timers.Schedule(id, delay, func() { e.handleTimeout(id) })
}

// Callers hold rec.mu. A non-positive timeout disables waiting expiry.
func (e *MatchEngine) scheduleWaitingExpiry(rec *matchRecord, delay time.Duration) {
	if e.cfg.WaitingTimeout <= 0 {
		return
	}
	id := rec.id
	e.timers.Schedule(id, delay, func() { e.expireWaiting(id) })
}

// snapshot copies every match. The caller holds the ledger batch lock.
func (e *MatchEngine) snapshot() []models.Match {
	out := e.views()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// prepareRecords rebuilds match records from snapshot entries.
func prepareRecords(matches []models.Match) (map[string]*matchRecord, error) {
	recs := make(map[string]*matchRecord, len(matches))
	for _, m := range matches {
		rec, err := recordFromMatch(m)
		if err != nil {
			return nil, err
		}
		if _, dup := recs[rec.id]; dup {
			return nil, fmt.Errorf("duplicate match %s", rec.id)
		}
		recs[rec.id] = rec
	}
	return recs, nil
}

// install replaces every match and drops pending timers. Call Reconcile
// afterwards to arm timers.
func (e *MatchEngine) install(recs map[string]*matchRecord) {
	e.timers.Stop()
	e.mu.Lock()
	e.matches = recs
	e.mu.Unlock()
}

func (e *MatchEngine) record(matchID string) (*matchRecord, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rec, ok := e.matches[matchID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, matchID)
	}
	return rec, nil
}

// credit moves match funds. Amounts are fixed by a validated fee schedule,
// so a failure here means a missing account.
func (e *MatchEngine) credit(accountID string, amount decimal.Decimal, kind models.TransactionKind, matchID string) {
	if !amount.IsPositive() {
		return
	}
	if _, err := e.ledger.Credit(accountID, amount, kind, matchID); err != nil {
		log.Printf("[MATCH] %s: failed to credit %s %s to %s: %v", matchID, kind, amount, accountID, err)
	}
}

func (e *MatchEngine) changed() {
	if e.onChange != nil {
		e.onChange()
	}
}

// publish must not be called with the ledger batch lock held.
func (e *MatchEngine) publish(eventType models.MatchEventType, m models.Match) {
	e.changed()
	e.broadcaster.BroadcastMatchEvent(models.MatchEvent{
		Type:      eventType,
		MatchID:   m.ID,
		Match:     m,
		Timestamp: e.clock.Now(),
	})
}

// splitRefund halves an amount to the cent. The odd cent goes to the first share.
func splitRefund(amount decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	second := amount.Div(decimal.NewFromInt(2)).RoundDown(2)
	return amount.Sub(second), second
}
