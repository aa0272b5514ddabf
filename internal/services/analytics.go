package services

import (
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"stakeduel-backend/internal/models"
)

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

// Analytics is the read-only developer dashboard. Callers outside the
// allow-list get zero values, never an error.
type Analytics struct {
	clock      clockwork.Clock
	ledger     *Ledger
	users      *UserRegistry
	matches    *MatchEngine
	developers map[string]struct{}
}

func NewAnalytics(clk clockwork.Clock, ledger *Ledger, users *UserRegistry, matches *MatchEngine, developerContacts []string) *Analytics {
	developers := make(map[string]struct{}, len(developerContacts))
	for _, contact := range developerContacts {
		if c := normalizeContact(contact); c != "" {
			developers[c] = struct{}{}
		}
	}
	return &Analytics{
		clock:      clk,
		ledger:     ledger,
		users:      users,
		matches:    matches,
		developers: developers,
	}
}

func (a *Analytics) IsDeveloper(contact string) bool {
	c := normalizeContact(contact)
	if c == "" {
		return false
	}
	_, ok := a.developers[c]
	return ok
}

func (a *Analytics) GetPlatformBalance(contact string) decimal.Decimal {
	if !a.IsDeveloper(contact) {
		return decimal.Zero
	}
	return a.ledger.PlatformBalance()
}

func (a *Analytics) GetAdminStats(contact string) models.AdminStats {
	if !a.IsDeveloper(contact) {
		return emptyAdminStats()
	}

	now := a.clock.Now()
	stats := emptyAdminStats()
	stats.PlatformBalance = a.ledger.PlatformBalance()

	users := a.users.List()
	stats.TotalUsers = len(users)
	for _, u := range users {
		age := now.Sub(u.CreatedAt)
		if age <= day {
			stats.Registrations.Day++
		}
		if age <= week {
			stats.Registrations.Week++
		}
		if age <= month {
			stats.Registrations.Month++
		}
	}

	var totalDuration time.Duration
	var timed int
	for _, m := range a.matches.ListMatches("") {
		switch m.Status {
		case models.MatchStatusWaiting:
			stats.WaitingMatches++
		case models.MatchStatusActive:
			stats.ActiveMatches++
		case models.MatchStatusCompleted:
			stats.CompletedMatches++
			if m.StartTime != nil && m.EndTime != nil {
				totalDuration += m.EndTime.Sub(*m.StartTime)
				timed++
			}
		case models.MatchStatusTimeout:
			stats.TimedOutMatches++
		case models.MatchStatusCancelled:
			stats.CancelledMatches++
		}
	}
	if timed > 0 {
		stats.AverageMatchDurationSeconds = totalDuration.Seconds() / float64(timed)
	}

	fees, _ := a.ledger.TransactionsFor(models.PlatformAccountID, 0)
	for _, tx := range fees {
		if tx.Kind != models.TransactionKindServerFee {
			continue
		}
		age := now.Sub(tx.CreatedAt)
		if age <= day {
			stats.Revenue.Day = stats.Revenue.Day.Add(tx.Amount)
		}
		if age <= week {
			stats.Revenue.Week = stats.Revenue.Week.Add(tx.Amount)
		}
		if age <= month {
			stats.Revenue.Month = stats.Revenue.Month.Add(tx.Amount)
		}
	}

	return stats
}

func emptyAdminStats() models.AdminStats {
	return models.AdminStats{
		PlatformBalance: decimal.Zero,
		Revenue: models.WindowedRevenue{
			Day:   decimal.Zero,
			Week:  decimal.Zero,
			Month: decimal.Zero,
		},
	}
}

func normalizeContact(contact string) string {
	return strings.ToLower(strings.TrimSpace(contact))
}
