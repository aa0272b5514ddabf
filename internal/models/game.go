package models

import (
	"strconv"
	"time"
)

// GameState is the per-match scoreboard. Shots are append-only.
type GameState struct {
	CurrentTurn          string   `json:"current_turn"`
	Player1Score         int      `json:"player1_score"`
	Player2Score         int      `json:"player2_score"`
	RemainingObjects     []string `json:"remaining_objects"`
	TimeRemainingSeconds int64    `json:"time_remaining_seconds"`
	Shots                []Shot   `json:"shots"`
}

type Shot struct {
	PlayerID        string    `json:"player_id"`
	Timestamp       time.Time `json:"timestamp"`
	ObjectsResolved []string  `json:"objects_resolved"`
	Valid           bool      `json:"valid"`
	Points          int       `json:"points"`
}

// DefaultObjects is the starting object set of every match.
func DefaultObjects() []string {
	objects := []string{"queen"}
	for _, color := range []string{"white", "black"} {
		for i := 1; i <= 9; i++ {
			objects = append(objects, color+"-"+strconv.Itoa(i))
		}
	}
	return objects
}

func NewGameState(player1ID string, duration time.Duration) GameState {
	return GameState{
		CurrentTurn:          player1ID,
		RemainingObjects:     DefaultObjects(),
		TimeRemainingSeconds: int64(duration / time.Second),
		Shots:                []Shot{},
	}
}

// Clone returns a deep copy.
func (g GameState) Clone() GameState {
	out := g
	out.RemainingObjects = cloneStrings(g.RemainingObjects)
	if g.Shots != nil {
		out.Shots = make([]Shot, len(g.Shots))
		for i, s := range g.Shots {
			s.ObjectsResolved = cloneStrings(s.ObjectsResolved)
			out.Shots[i] = s
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
