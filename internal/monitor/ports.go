// Package monitor is the monitoring-and-scoring engine: it polls the score
// feed for tracked games, decides finished games' winners, awards points to
// correct predictions and keeps the rating table and database in step.
package monitor

import (
	"context"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/feed"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"
)

// GameStore reads tracked games and advances their status
type GameStore interface {
	ListTracked(ctx context.Context, tt models.TournamentType) ([]*models.Game, error)
	UpdateStatus(ctx context.Context, key string, tt models.TournamentType, status models.Status) error
	SetFinalScore(ctx context.Context, key string, tt models.TournamentType, home, away int) error
	GetCoefficients(ctx context.Context, key string) (models.Coefficients, error)
}

// AnswerStore reads predictions
type AnswerStore interface {
	ListByGame(ctx context.Context, key string, tt models.TournamentType) ([]models.Answer, error)
}

// NicknameResolver maps chat ids to participant nicknames
type NicknameResolver interface {
	NicknameByChatID(ctx context.Context, chatID int64) (string, error)
}

// ScoreStore persists score deltas
type ScoreStore interface {
	AddScores(ctx context.Context, deltas []models.ScoreDelta) error
}

// Feed fetches a game's data blob
type Feed interface {
	FetchGame(ctx context.Context, key string) (feed.Blob, error)
}

// RatingTable is the rating worksheet
type RatingTable interface {
	ColumnValues(ctx context.Context, col int) ([]string, error)
	Get(ctx context.Context, a1 string) ([][]string, error)
	BatchUpdate(ctx context.Context, updates []sheets.CellUpdate) error
	Sort(ctx context.Context, a1 string, specs ...sheets.SortSpec) error
}

// ResultMarker highlights a finished game for the organisers
type ResultMarker interface {
	MarkResult(ctx context.Context, tt models.TournamentType, key string, outcome models.Outcome) error
}

// Journal keeps batches that could not be written
type Journal interface {
	Record(ctx context.Context, cycleID string, stage journal.Stage, deltas []models.ScoreDelta, cause error) (int64, error)
	RecordUnscored(ctx context.Context, cycleID string, game *models.Game, outcome models.Outcome, cause error) (int64, error)
}

// Guard runs fn only while no other process works on the same name
type Guard interface {
	Do(ctx context.Context, name string, fn func(ctx context.Context) error) error
}
