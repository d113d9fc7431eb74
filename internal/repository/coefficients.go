package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/jackc/pgx/v5"
)

// GetCoefficients retrieves the published coefficients of a game
func (r *GameRepository) GetCoefficients(ctx context.Context, key string) (models.Coefficients, error) {
	start := time.Now()
	query := `
		SELECT COALESCE(first_coeff, ''), COALESCE(second_coeff, ''), COALESCE(draw_coeff, '')
		FROM games
		WHERE game_key = $1
		LIMIT 1
	`

	var coeffs models.Coefficients
	err := r.db.Pool.QueryRow(ctx, query, key).Scan(&coeffs[0], &coeffs[1], &coeffs[2])
	observe("select", "games", start, err)

	if isNoRows(err) {
		return coeffs, fmt.Errorf("coefficients of game %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return coeffs, fmt.Errorf("failed to get coefficients: %w", err)
	}

	return coeffs, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
