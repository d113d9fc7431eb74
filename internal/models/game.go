package models

import (
	"database/sql"
	"fmt"
	"time"
)

// Status is the lifecycle code the score feed reports for a game
type Status int

const (
	StatusUnknown   Status = 0
	StatusScheduled Status = 1
	StatusLive      Status = 2
	StatusFinished  Status = 3
)

// String returns a human readable status name
func (s Status) String() string {
	switch s {
	case StatusScheduled:
		return "scheduled"
	case StatusLive:
		return "live"
	case StatusFinished:
		return "finished"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Valid reports whether s is one of the three feed lifecycle codes
func (s Status) Valid() bool {
	return s >= StatusScheduled && s <= StatusFinished
}

// Game represents a tracked match of one tournament type
type Game struct {
	ID             int            `db:"id"`
	Key            string         `db:"game_key"`
	TournamentType TournamentType `db:"tournament_type"`
	Status         Status         `db:"status"`
	BeginTime      sql.NullTime   `db:"begin_time"`

	// Final score, set when the game finishes
	HomeScore sql.NullInt32 `db:"home_score"`
	AwayScore sql.NullInt32 `db:"away_score"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsActive returns true if the game is currently in progress
func (g *Game) IsActive() bool {
	return g.Status == StatusLive
}

// IsScheduled returns true if the game is scheduled but not started
func (g *Game) IsScheduled() bool {
	return g.Status == StatusScheduled
}

// IsFinal returns true if the game is completed
func (g *Game) IsFinal() bool {
	return g.Status == StatusFinished
}

// Outcome is a match result as predicted by participants and decided by the feed
type Outcome int

const (
	OutcomeUnknown Outcome = 0
	OutcomeFirst   Outcome = 1
	OutcomeSecond  Outcome = 2
	OutcomeDraw    Outcome = 3
)

// Decided reports whether the outcome names a winner or a draw
func (o Outcome) Decided() bool {
	return o >= OutcomeFirst && o <= OutcomeDraw
}

func (o Outcome) String() string {
	switch o {
	case OutcomeFirst:
		return "first"
	case OutcomeSecond:
		return "second"
	case OutcomeDraw:
		return "draw"
	default:
		return "unknown"
	}
}
