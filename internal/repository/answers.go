package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
)

// AnswerRepository reads participants' predictions
type AnswerRepository struct {
	db *Database
}

// Create stores a prediction
func (r *AnswerRepository) Create(ctx context.Context, gameKey string, answer models.Answer) error {
	if !answer.Outcome.Decided() {
		return fmt.Errorf("answer must predict an outcome, got %d", answer.Outcome)
	}

	start := time.Now()
	query := `
		INSERT INTO answers (chat_id, game_key, answer, tournament_type, tournament)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		answer.ChatID, gameKey, answer.Outcome, answer.TournamentType, answer.Tournament,
	)
	observe("insert", "answers", start, err)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}

	return nil
}

// ListByGame retrieves every prediction made for a game in a tournament type
func (r *AnswerRepository) ListByGame(ctx context.Context, gameKey string, tt models.TournamentType) ([]models.Answer, error) {
	start := time.Now()
	query := `
		SELECT chat_id, answer, tournament_type, tournament
		FROM answers
		WHERE game_key = $1 AND tournament_type = $2
	`

	rows, err := r.db.Pool.Query(ctx, query, gameKey, tt)
	if err != nil {
		observe("select", "answers", start, err)
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var answers []models.Answer
	for rows.Next() {
		var a models.Answer
		if err := rows.Scan(&a.ChatID, &a.Outcome, &a.TournamentType, &a.Tournament); err != nil {
			observe("select", "answers", start, err)
			return nil, fmt.Errorf("failed to scan answer: %w", err)
		}
		answers = append(answers, a)
	}

	err = rows.Err()
	observe("select", "answers", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating answers: %w", err)
	}

	return answers, nil
}
