package models

// Answer is a participant's prediction for one game within one tournament
type Answer struct {
	ChatID         int64          `db:"chat_id"`
	Outcome        Outcome        `db:"answer"`
	TournamentType TournamentType `db:"tournament_type"`
	Tournament     string         `db:"tournament"`
}

// ScoreDelta is the points a participant earns in one tournament
type ScoreDelta struct {
	Nickname       string         `json:"nickname"`
	Tournament     string         `json:"tournament"`
	TournamentType TournamentType `json:"tournament_type"`
	Points         int            `json:"points"`
}
