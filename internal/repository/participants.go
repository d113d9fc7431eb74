package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// ParticipantRepository handles users and their per-tournament scores
type ParticipantRepository struct {
	db *Database
}

// RegisterUser links a chat id to an internal nickname
func (r *ParticipantRepository) RegisterUser(ctx context.Context, chatID int64, nickname string) error {
	start := time.Now()
	query := `
		INSERT INTO users (chat_id, nickname)
		VALUES ($1, $2)
		ON CONFLICT (chat_id) DO UPDATE SET nickname = EXCLUDED.nickname
	`

	_, err := r.db.Pool.Exec(ctx, query, chatID, nickname)
	observe("upsert", "users", start, err)
	if err != nil {
		return fmt.Errorf("failed to register user: %w", err)
	}

	return nil
}

// Register adds a participant to a tournament with a zero score
func (r *ParticipantRepository) Register(ctx context.Context, p models.Participant) error {
	start := time.Now()
	query := `
		INSERT INTO participants (nickname, tournament, tournament_type, scores)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (nickname, tournament) DO NOTHING
	`

	_, err := r.db.Pool.Exec(ctx, query, p.Nickname, p.Tournament, p.TournamentType, p.Score)
	observe("insert", "participants", start, err)
	if err != nil {
		return fmt.Errorf("failed to register participant: %w", err)
	}

	return nil
}

// NicknameByChatID resolves the internal nickname of a chat user
func (r *ParticipantRepository) NicknameByChatID(ctx context.Context, chatID int64) (string, error) {
	start := time.Now()
	query := `SELECT nickname FROM users WHERE chat_id = $1`

	var nickname string
	err := r.db.Pool.QueryRow(ctx, query, chatID).Scan(&nickname)
	observe("select", "users", start, err)

	if isNoRows(err) {
		return "", fmt.Errorf("user chat_id=%d: %w", chatID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to get nickname: %w", err)
	}

	return nickname, nil
}

// Get retrieves a participant's standing in one tournament
func (r *ParticipantRepository) Get(ctx context.Context, nickname, tournament string) (*models.Participant, error) {
	start := time.Now()
	query := `
		SELECT nickname, tournament, tournament_type, scores
		FROM participants
		WHERE nickname = $1 AND tournament = $2
	`

	var p models.Participant
	err := r.db.Pool.QueryRow(ctx, query, nickname, tournament).Scan(
		&p.Nickname, &p.Tournament, &p.TournamentType, &p.Score,
	)
	observe("select", "participants", start, err)

	if isNoRows(err) {
		return nil, fmt.Errorf("participant %s in %s: %w", nickname, tournament, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get participant: %w", err)
	}

	return &p, nil
}

// AddScores applies a batch of score deltas in one transaction
func (r *ParticipantRepository) AddScores(ctx context.Context, deltas []models.ScoreDelta) error {
	if len(deltas) == 0 {
		return nil
	}

	start := time.Now()
	query := `
		UPDATE participants
		SET scores = scores + $1
		WHERE nickname = $2 AND tournament = $3
	`

	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		for _, d := range deltas {
			result, err := tx.Exec(ctx, query, d.Points, d.Nickname, d.Tournament)
			if err != nil {
				return fmt.Errorf("failed to add %d points to %s: %w", d.Points, d.Nickname, err)
			}
			if result.RowsAffected() == 0 {
				// The rating table row exists, the participant row does not; keep the batch going
				log.Warn().
					Str("nickname", d.Nickname).
					Str("tournament", d.Tournament).
					Msg("Participant missing in database, delta not stored")
			}
		}
		return nil
	})
	observe("update", "participants", start, err)
	if err != nil {
		return fmt.Errorf("failed to add scores: %w", err)
	}

	return nil
}

// Standings returns every nickname's total score across tournaments, best first
func (r *ParticipantRepository) Standings(ctx context.Context) ([]models.Standing, error) {
	start := time.Now()
	query := `
		SELECT nickname, SUM(scores)::int AS score
		FROM participants
		GROUP BY nickname
		ORDER BY score DESC, nickname
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		observe("select", "participants", start, err)
		return nil, fmt.Errorf("failed to get standings: %w", err)
	}
	defer rows.Close()

	var standings []models.Standing
	for rows.Next() {
		var s models.Standing
		if err := rows.Scan(&s.Nickname, &s.Score); err != nil {
			observe("select", "participants", start, err)
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, s)
	}

	err = rows.Err()
	observe("select", "participants", start, err)
	if err != nil {
		return nil, fmt.Errorf("error iterating standings: %w", err)
	}

	return standings, nil
}
