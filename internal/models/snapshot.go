package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotVersion is the current on-disk schema version.
const SnapshotVersion = 1

type Snapshot struct {
	Version         int             `json:"version"`
	SavedAt         time.Time       `json:"saved_at"`
	Users           []User          `json:"users"`
	Matches         []Match         `json:"matches"`
	Transactions    []Transaction   `json:"transactions"`
	PlatformBalance decimal.Decimal `json:"platform_balance"`
}
