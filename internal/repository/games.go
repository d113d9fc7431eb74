package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/rs/zerolog/log"
)

// GameRepository handles game database operations.
// Games are written by the collector; the monitor only advances their status.
type GameRepository struct {
	db *Database
}

// Create inserts a new game with its coefficients
func (r *GameRepository) Create(ctx context.Context, game *models.Game, coeffs models.Coefficients) error {
	start := time.Now()
	query := `
		INSERT INTO games (
			game_key, tournament_type, status, begin_time,
			first_coeff, second_coeff, draw_coeff
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`

	err := r.db.Pool.QueryRow(
		ctx, query,
		game.Key, game.TournamentType, game.Status, game.BeginTime,
		coeffs[0], coeffs[1], coeffs[2],
	).Scan(&game.ID, &game.CreatedAt, &game.UpdatedAt)
	observe("insert", "games", start, err)

	if err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}

	log.Debug().
		Int("id", game.ID).
		Str("game", game.Key).
		Str("type", game.TournamentType.String()).
		Msg("Game created")

	return nil
}

// ListTracked retrieves the unfinished games of a tournament type.
// An empty result means the type has no games left to monitor.
func (r *GameRepository) ListTracked(ctx context.Context, tt models.TournamentType) ([]*models.Game, error) {
	start := time.Now()
	query := `
		SELECT id, game_key, tournament_type, status, begin_time,
		       home_score, away_score, created_at, updated_at
		FROM games
		WHERE tournament_type = $1 AND status < $2
		ORDER BY begin_time NULLS LAST, id
	`

	rows, err := r.db.Pool.Query(ctx, query, tt, models.StatusFinished)
	if err != nil {
		observe("select", "games", start, err)
		return nil, fmt.Errorf("failed to list tracked games: %w", err)
	}
	defer rows.Close()

	var games []*models.Game
	for rows.Next() {
		var game models.Game
		err := rows.Scan(
			&game.ID, &game.Key, &game.TournamentType, &game.Status, &game.BeginTime,
			&game.HomeScore, &game.AwayScore, &game.CreatedAt, &game.UpdatedAt,
		)
		if err != nil {
			observe("select", "games", start, err)
			return nil, fmt.Errorf("failed to scan game: %w", err)
		}
		games = append(games, &game)
	}

	err = rows.Err()
	observe("select", "games", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating games: %w", err)
	}

	log.Debug().Str("type", tt.String()).Int("count", len(games)).Msg("Retrieved tracked games")
	return games, nil
}

// GetByKey retrieves a game by its feed key and tournament type
func (r *GameRepository) GetByKey(ctx context.Context, key string, tt models.TournamentType) (*models.Game, error) {
	start := time.Now()
	query := `
		SELECT id, game_key, tournament_type, status, begin_time,
		       home_score, away_score, created_at, updated_at
		FROM games
		WHERE game_key = $1 AND tournament_type = $2
	`

	var game models.Game
	err := r.db.Pool.QueryRow(ctx, query, key, tt).Scan(
		&game.ID, &game.Key, &game.TournamentType, &game.Status, &game.BeginTime,
		&game.HomeScore, &game.AwayScore, &game.CreatedAt, &game.UpdatedAt,
	)
	observe("select", "games", start, err)

	if isNoRows(err) {
		return nil, fmt.Errorf("game %s/%s: %w", tt, key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game: %w", err)
	}

	return &game, nil
}

// UpdateStatus moves a game forward to status. Writing the current or an
// earlier status is a no-op, so the stored lifecycle never goes backward.
func (r *GameRepository) UpdateStatus(ctx context.Context, key string, tt models.TournamentType, status models.Status) error {
	start := time.Now()
	query := `
		UPDATE games
		SET status = $1, updated_at = NOW()
		WHERE game_key = $2 AND tournament_type = $3 AND status < $1
	`

	result, err := r.db.Pool.Exec(ctx, query, status, key, tt)
	observe("update", "games", start, err)
	if err != nil {
		return fmt.Errorf("failed to update game status: %w", err)
	}

	log.Debug().
		Str("game", key).
		Str("type", tt.String()).
		Str("status", status.String()).
		Int64("rows", result.RowsAffected()).
		Msg("Game status written")

	return nil
}

// SetFinalScore stores the final score of a finished game
func (r *GameRepository) SetFinalScore(ctx context.Context, key string, tt models.TournamentType, home, away int) error {
	start := time.Now()
	query := `
		UPDATE games
		SET home_score = $1, away_score = $2, updated_at = NOW()
		WHERE game_key = $3 AND tournament_type = $4
	`

	result, err := r.db.Pool.Exec(ctx, query, home, away, key, tt)
	observe("update", "games", start, err)
	if err != nil {
		return fmt.Errorf("failed to set final score: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("game %s/%s: %w", tt, key, ErrNotFound)
	}

	return nil
}

// CountTracked returns the number of unfinished games of a tournament type
func (r *GameRepository) CountTracked(ctx context.Context, tt models.TournamentType) (int, error) {
	query := `SELECT COUNT(*) FROM games WHERE tournament_type = $1 AND status < $2`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, tt, models.StatusFinished).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count games: %w", err)
	}

	return count, nil
}
