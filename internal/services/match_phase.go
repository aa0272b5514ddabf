package services

import (
	"fmt"
	"sync"
	"time"

	"stakeduel-backend/internal/models"
)

// matchPhase is the lifecycle variant of a match. Only terminalPhase carries
// a winner, and only activePhase and terminalPhase carry a second player.
type matchPhase interface {
	status() models.MatchStatus
}

type waitingPhase struct {
	player1 string
}

type activePhase struct {
	player1   string
	player2   string
	startTime time.Time
}

type terminalPhase struct {
	outcome   models.MatchStatus
	player1   string
	player2   string
	winner    string
	startTime *time.Time
	endTime   time.Time
}

func (waitingPhase) status() models.MatchStatus { return models.MatchStatusWaiting }
func (activePhase) status() models.MatchStatus  { return models.MatchStatusActive }
func (p terminalPhase) status() models.MatchStatus {
	return p.outcome
}

// matchRecord is one match and its lock. Every read or write of phase and
// state goes through mu.
type matchRecord struct {
	mu        sync.Mutex
	id        string
	fees      models.FeeSchedule
	duration  time.Duration
	createdAt time.Time
	phase     matchPhase
	state     models.GameState
}

func (r *matchRecord) players() (string, string) {
	switch p := r.phase.(type) {
	case waitingPhase:
		return p.player1, ""
	case activePhase:
		return p.player1, p.player2
	case terminalPhase:
		return p.player1, p.player2
	}
	return "", ""
}

// view flattens the record. Callers hold r.mu.
func (r *matchRecord) view(now time.Time) models.Match {
	m := models.Match{
		ID:              r.id,
		Fees:            r.fees,
		Status:          r.phase.status(),
		CreatedAt:       r.createdAt,
		DurationSeconds: int64(r.duration / time.Second),
		GameState:       r.state.Clone(),
	}
	m.Player1ID, m.Player2ID = r.players()

	switch p := r.phase.(type) {
	case activePhase:
		start := p.startTime
		m.StartTime = &start
		m.GameState.TimeRemainingSeconds = remainingSeconds(p.startTime, r.duration, now)
	case terminalPhase:
		m.WinnerID = p.winner
		if p.startTime != nil {
			start := *p.startTime
			m.StartTime = &start
		}
		end := p.endTime
		m.EndTime = &end
	}
	return m
}

// recordFromMatch rebuilds the variant from a flattened snapshot entry.
func recordFromMatch(m models.Match) (*matchRecord, error) {
	if err := m.Fees.Validate(); err != nil {
		return nil, fmt.Errorf("match %s: %w", m.ID, err)
	}
	if m.DurationSeconds <= 0 {
		return nil, fmt.Errorf("match %s: duration must be positive", m.ID)
	}
	rec := &matchRecord{
		id:        m.ID,
		fees:      m.Fees,
		duration:  m.Duration(),
		createdAt: m.CreatedAt,
		state:     m.GameState.Clone(),
	}

	switch m.Status {
	case models.MatchStatusWaiting:
		if m.Player1ID == "" || m.Player2ID != "" || m.WinnerID != "" {
			return nil, fmt.Errorf("match %s: malformed waiting match", m.ID)
		}
		rec.phase = waitingPhase{player1: m.Player1ID}
	case models.MatchStatusActive:
		if m.Player1ID == "" || m.Player2ID == "" || m.StartTime == nil || m.WinnerID != "" {
			return nil, fmt.Errorf("match %s: malformed active match", m.ID)
		}
		rec.phase = activePhase{player1: m.Player1ID, player2: m.Player2ID, startTime: *m.StartTime}
	case models.MatchStatusCompleted, models.MatchStatusTimeout, models.MatchStatusCancelled:
		if m.EndTime == nil {
			return nil, fmt.Errorf("match %s: terminal match without end time", m.ID)
		}
		if m.WinnerID != "" && !m.HasPlayer(m.WinnerID) {
			return nil, fmt.Errorf("match %s: winner is not a player", m.ID)
		}
		p := terminalPhase{
			outcome: m.Status,
			player1: m.Player1ID,
			player2: m.Player2ID,
			winner:  m.WinnerID,
			endTime: *m.EndTime,
		}
		if m.StartTime != nil {
			start := *m.StartTime
			p.startTime = &start
		}
		rec.phase = p
	default:
		return nil, fmt.Errorf("match %s: unknown status %q", m.ID, m.Status)
	}
	return rec, nil
}

func remainingSeconds(start time.Time, duration time.Duration, now time.Time) int64 {
	left := start.Add(duration).Sub(now)
	if left <= 0 {
		return 0
	}
	return int64((left + time.Second - 1) / time.Second)
}
