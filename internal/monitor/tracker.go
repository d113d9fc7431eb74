package monitor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/feed"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"

	"github.com/rs/zerolog/log"
)

// Observation is what one poll learned about a game
type Observation struct {
	Status   models.Status
	Advanced bool // the stored status moved forward
	Finished bool
	Outcome  models.Outcome
}

// Tracker follows games through SCHEDULED -> LIVE -> FINISHED
type Tracker struct {
	feed   Feed
	games  GameStore
	marker ResultMarker
	policy retry.Policy
}

// NewTracker creates a tracker. marker may be nil.
func NewTracker(f Feed, games GameStore, marker ResultMarker, policy retry.Policy) *Tracker {
	return &Tracker{feed: f, games: games, marker: marker, policy: policy}
}

func (t *Tracker) fetch(ctx context.Context, key string) (feed.Blob, error) {
	return retry.Value(ctx, t.policy, "feed.fetch_game", func(ctx context.Context) (feed.Blob, error) {
		return t.feed.FetchGame(ctx, key)
	})
}

// PollStatus reads a game's current lifecycle status from the feed
func (t *Tracker) PollStatus(ctx context.Context, key string) (models.Status, error) {
	blob, err := t.fetch(ctx, key)
	if err != nil {
		return models.StatusUnknown, err
	}
	return blob.Status()
}

// Winner reads a finished game's result from the feed
func (t *Tracker) Winner(ctx context.Context, key string) (models.Outcome, error) {
	blob, err := t.fetch(ctx, key)
	if err != nil {
		return models.OutcomeUnknown, err
	}
	return winnerOf(key, blob), nil
}

// winnerOf compares the DE/DF scores numerically. Missing or non-numeric
// scores leave the outcome unknown.
func winnerOf(key string, blob feed.Blob) models.Outcome {
	rawFirst, rawSecond, ok := blob.FinalScore()
	if !ok {
		log.Warn().Str("game", key).Msg("Feed has no final score, result undetermined")
		return models.OutcomeUnknown
	}

	first, errFirst := strconv.Atoi(strings.TrimSpace(rawFirst))
	second, errSecond := strconv.Atoi(strings.TrimSpace(rawSecond))
	if errFirst != nil || errSecond != nil {
		log.Warn().
			Str("game", key).
			Str("first", rawFirst).
			Str("second", rawSecond).
			Msg("Non-numeric final score, result undetermined")
		return models.OutcomeUnknown
	}

	switch {
	case first > second:
		return models.OutcomeFirst
	case first < second:
		return models.OutcomeSecond
	default:
		return models.OutcomeDraw
	}
}

// Observe polls a game once. A status ahead of the stored one is persisted
// before anything else; a status at or behind it changes nothing. When the
// game has just finished the winner is decided, the final score stored and
// the game board marked.
func (t *Tracker) Observe(ctx context.Context, game *models.Game) (*Observation, error) {
	logger := log.With().Str("game", game.Key).Str("type", game.TournamentType.String()).Logger()

	blob, err := t.fetch(ctx, game.Key)
	if err != nil {
		return nil, err
	}

	status, err := blob.Status()
	if err != nil {
		return nil, fmt.Errorf("game %s: %w", game.Key, err)
	}

	obs := &Observation{Status: game.Status}
	if status < game.Status {
		logger.Debug().
			Str("stored", game.Status.String()).
			Str("feed", status.String()).
			Msg("Feed reported an earlier status, ignored")
		return obs, nil
	}
	if status == game.Status {
		return obs, nil
	}

	err = retry.Do(ctx, t.policy, "db.update_status", func(ctx context.Context) error {
		return t.games.UpdateStatus(ctx, game.Key, game.TournamentType, status)
	})
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("from", game.Status.String()).
		Str("to", status.String()).
		Msg("Game status advanced")

	game.Status = status
	obs.Status = status
	obs.Advanced = true

	if status != models.StatusFinished {
		return obs, nil
	}

	obs.Finished = true
	obs.Outcome = winnerOf(game.Key, blob)
	metrics.RecordGameFinished(game.TournamentType.String(), obs.Outcome.String())

	if obs.Outcome.Decided() {
		t.storeFinalScore(ctx, game, blob)
	}

	if t.marker != nil {
		retry.Swallow(ctx, t.policy, "sheets.mark_result", func(ctx context.Context) error {
			return t.marker.MarkResult(ctx, game.TournamentType, game.Key, obs.Outcome)
		})
	}

	logger.Info().Str("outcome", obs.Outcome.String()).Msg("Game finished")
	return obs, nil
}

func (t *Tracker) storeFinalScore(ctx context.Context, game *models.Game, blob feed.Blob) {
	rawFirst, rawSecond, _ := blob.FinalScore()
	home, _ := strconv.Atoi(strings.TrimSpace(rawFirst))
	away, _ := strconv.Atoi(strings.TrimSpace(rawSecond))

	err := retry.Do(ctx, t.policy, "db.set_final_score", func(ctx context.Context) error {
		return t.games.SetFinalScore(ctx, game.Key, game.TournamentType, home, away)
	})
	if err != nil {
		log.Error().Err(err).Str("game", game.Key).Msg("Failed to store final score")
		return
	}

	game.HomeScore.Int32, game.HomeScore.Valid = int32(home), true
	game.AwayScore.Int32, game.AwayScore.Valid = int32(away), true
}
