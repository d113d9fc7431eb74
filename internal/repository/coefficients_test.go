//go:build integration

package repository

import (
	"testing"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGameRepository_GetCoefficients(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	createGame(t, db, "g1", models.Fast, models.StatusScheduled)

	coeffs, err := db.Games.GetCoefficients(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, models.Coefficients{"1,30", "2,50", "3,00"}, coeffs)
	assert.Equal(t, "2,50", coeffs.For(models.OutcomeSecond))

	_, err = db.Games.GetCoefficients(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAnswerRepository_ListByGame(t *testing.T) {
	db, ctx := setupTestDB(t)
	defer teardownTestDB(t, db)

	answers := []models.Answer{
		{ChatID: 1, Outcome: models.OutcomeFirst, TournamentType: models.Fast, Tournament: "T1"},
		{ChatID: 2, Outcome: models.OutcomeDraw, TournamentType: models.Fast, Tournament: "T1"},
		{ChatID: 3, Outcome: models.OutcomeFirst, TournamentType: models.Slow, Tournament: "T9"},
	}
	for _, a := range answers {
		require.NoError(t, db.Answers.Create(ctx, "g1", a))
	}

	got, err := db.Answers.ListByGame(ctx, "g1", models.Fast)
	require.NoError(t, err)
	assert.ElementsMatch(t, answers[:2], got)

	err = db.Answers.Create(ctx, "g1", models.Answer{ChatID: 4, Outcome: models.OutcomeUnknown})
	assert.Error(t, err, "An answer must name an outcome")
}
