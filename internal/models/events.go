package models

import "time"

type MatchEventType string

const (
	EventMatchCreated   MatchEventType = "MATCH_CREATED"
	EventMatchJoined    MatchEventType = "MATCH_JOINED"
	EventShotRecorded   MatchEventType = "SHOT_RECORDED"
	EventMatchEnded     MatchEventType = "MATCH_ENDED"
	EventMatchTimeout   MatchEventType = "MATCH_TIMEOUT"
	EventMatchCancelled MatchEventType = "MATCH_CANCELLED"
)

type MatchEvent struct {
	Type      MatchEventType `json:"type"`
	MatchID   string         `json:"match_id"`
	Match     Match          `json:"match"`
	Timestamp time.Time      `json:"timestamp"`
}

// Recipients lists the users the event concerns.
func (e MatchEvent) Recipients() []string {
	var ids []string
	if e.Match.Player1ID != "" {
		ids = append(ids, e.Match.Player1ID)
	}
	if e.Match.Player2ID != "" {
		ids = append(ids, e.Match.Player2ID)
	}
	return ids
}
