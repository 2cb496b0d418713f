package models

import (
	"time"
)

const (
	OutcomeWinner     = "winner"
	OutcomeEliminated = "eliminated"
	OutcomeLost       = "lost"
)

// GameRecord is the archived summary of one finished game.
type GameRecord struct {
	RoomID     string       `json:"room_id"`
	Winner     string       `json:"winner,omitempty"`
	Players    []PlayerInfo `json:"players"`
	Log        []string     `json:"log"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// PlayerInfo is one participant of a GameRecord, by display name.
type PlayerInfo struct {
	Name    string `json:"name"`
	Outcome string `json:"outcome"`
}

// Duration is how long the game ran.
func (r *GameRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// PlayerStats aggregates a player's archived games.
type PlayerStats struct {
	Name         string `json:"name"`
	Games        int    `json:"games"`
	Wins         int    `json:"wins"`
	Eliminations int    `json:"eliminations"`
}

// Add counts one archived game for s.Name.
func (s *PlayerStats) Add(record *GameRecord) {
	for _, p := range record.Players {
		if p.Name != s.Name {
			continue
		}
		s.Games++
		switch p.Outcome {
		case OutcomeWinner:
			s.Wins++
		case OutcomeEliminated:
			s.Eliminations++
		}
		return
	}
}
