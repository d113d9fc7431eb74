package models

// Participant is a registered player's standing in one tournament
type Participant struct {
	Nickname       string         `db:"nickname"`
	Tournament     string         `db:"tournament"`
	TournamentType TournamentType `db:"tournament_type"`
	Score          int            `db:"scores"`
}

// Standing is a participant's cross-tournament total
type Standing struct {
	Nickname string `db:"nickname"`
	Score    int    `db:"score"`
}
