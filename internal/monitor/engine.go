package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/cache"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Deps are the engine's collaborators. Marker, Journal and Guard are optional.
type Deps struct {
	Layout    *layout.Layout
	Games     GameStore
	Answers   AnswerStore
	Nicknames NicknameResolver
	Scores    ScoreStore
	Feed      Feed
	Table     RatingTable
	Marker    ResultMarker
	Journal   Journal
	Guard     Guard
	Policy    retry.Policy
}

// CycleResult summarises one poll cycle
type CycleResult struct {
	ID        string
	Started   time.Time
	Duration  time.Duration
	Exhausted []models.TournamentType
	Skipped   []models.TournamentType // held by another process
	Failed    []models.TournamentType // game list could not be read
	Finished  []string
	Awarded   int
}

// Engine runs poll cycles
type Engine struct {
	layout     *layout.Layout
	games      GameStore
	answers    AnswerStore
	journal    Journal
	guard      Guard
	policy     retry.Policy
	tracker    *Tracker
	updater    *Updater
	aggregator *Aggregator
}

// New wires an engine
func New(d Deps) (*Engine, error) {
	switch {
	case d.Layout == nil:
		return nil, errors.New("engine needs a rating layout")
	case d.Games == nil || d.Answers == nil || d.Nicknames == nil || d.Scores == nil:
		return nil, errors.New("engine needs game, answer, nickname and score stores")
	case d.Feed == nil:
		return nil, errors.New("engine needs a score feed")
	case d.Table == nil:
		return nil, errors.New("engine needs a rating table")
	}

	return &Engine{
		layout:     d.Layout,
		games:      d.Games,
		answers:    d.Answers,
		journal:    d.Journal,
		guard:      d.Guard,
		policy:     d.Policy,
		tracker:    NewTracker(d.Feed, d.Games, d.Marker, d.Policy),
		updater:    NewUpdater(d.Layout, d.Table, d.Nicknames, d.Scores, d.Policy),
		aggregator: NewAggregator(d.Layout, d.Table, d.Policy),
	}, nil
}

// Updater exposes the engine's updater for journal replays
func (e *Engine) Updater() *Updater {
	return e.updater
}

// Aggregator exposes the engine's aggregator
func (e *Engine) Aggregator() *Aggregator {
	return e.aggregator
}

// RunCycle polls every tracked game of the given types once. Failures are
// isolated per game; the returned error is reserved for a score batch that
// could not be written, which is also recorded in the journal.
func (e *Engine) RunCycle(ctx context.Context, types ...models.TournamentType) (*CycleResult, error) {
	for _, tt := range types {
		if !e.layout.Has(tt) {
			return nil, fmt.Errorf("tournament type %s has no rating block", tt)
		}
	}

	result := &CycleResult{ID: uuid.NewString(), Started: time.Now()}
	logger := log.With().Str("cycle", result.ID).Logger()
	logger.Info().Interface("types", types).Msg("Monitoring cycle started")

	err := e.guarded(ctx, types, nil, result, func(ctx context.Context, held []models.TournamentType) error {
		return e.cycle(logger.WithContext(ctx), held, result)
	})

	result.Duration = time.Since(result.Started)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordCycle(status, result.Duration.Seconds())

	logger.Info().
		Dur("duration", result.Duration).
		Int("finished", len(result.Finished)).
		Int("awarded", result.Awarded).
		Interface("exhausted", result.Exhausted).
		Interface("skipped", result.Skipped).
		Msg("Monitoring cycle done")

	return result, err
}

// guarded takes the guard of every type in turn, skipping types another
// process holds, and runs fn while holding all the others.
func (e *Engine) guarded(ctx context.Context, types, held []models.TournamentType, result *CycleResult, fn func(ctx context.Context, held []models.TournamentType) error) error {
	if len(types) == 0 {
		if len(held) == 0 {
			return nil
		}
		return fn(ctx, held)
	}
	if e.guard == nil {
		return fn(ctx, types)
	}

	tt := types[0]
	err := e.guard.Do(ctx, tt.String(), func(ctx context.Context) error {
		return e.guarded(ctx, types[1:], append(held[:len(held):len(held)], tt), result, fn)
	})
	if errors.Is(err, cache.ErrLocked) {
		log.Warn().Str("type", tt.String()).Msg("Another worker is monitoring this type, skipped")
		result.Skipped = append(result.Skipped, tt)
		return e.guarded(ctx, types[1:], held, result, fn)
	}
	return err
}

func (e *Engine) cycle(ctx context.Context, types []models.TournamentType, result *CycleResult) error {
	logger := zerolog.Ctx(ctx)
	batch := e.updater.NewBatch()

	for _, tt := range types {
		games, err := retry.Value(ctx, e.policy, "db.list_tracked", func(ctx context.Context) ([]*models.Game, error) {
			return e.games.ListTracked(ctx, tt)
		})
		if err != nil {
			logger.Error().Err(err).Str("type", tt.String()).Msg("Failed to list tracked games")
			result.Failed = append(result.Failed, tt)
			continue
		}
		metrics.SetTrackedGames(tt.String(), len(games))

		if e.aggregator.Exhausted(tt, games) {
			result.Exhausted = append(result.Exhausted, tt)
			continue
		}

		for _, game := range games {
			e.processGame(ctx, batch, game, result)
		}
	}

	result.Awarded = len(batch.Deltas())
	if err := e.updater.Flush(ctx, batch); err != nil {
		e.escalate(ctx, result.ID, err)
		return err
	}

	for _, tt := range batch.Types() {
		if err := e.aggregator.Resort(ctx, tt); err != nil {
			logger.Error().Err(err).Str("type", tt.String()).Msg("Failed to sort rating block")
		}
	}

	return nil
}

func (e *Engine) processGame(ctx context.Context, batch *Batch, game *models.Game, result *CycleResult) {
	logger := zerolog.Ctx(ctx).With().Str("game", game.Key).Str("type", game.TournamentType.String()).Logger()

	obs, err := e.tracker.Observe(ctx, game)
	if err != nil {
		logger.Warn().Err(err).Msg("Game unresolved this cycle")
		return
	}
	if !obs.Finished {
		return
	}
	result.Finished = append(result.Finished, game.Key)

	if !obs.Outcome.Decided() {
		return
	}

	unplaced, err := e.score(ctx, batch, game, obs.Outcome)
	switch {
	case errors.Is(err, ErrNotScored):
		logger.Error().Err(err).Str("outcome", obs.Outcome.String()).Msg("Finished game not scored, escalated")
		e.recordUnscored(ctx, result.ID, game, obs.Outcome, err)
	case err != nil:
		logger.Error().Err(err).Int("deltas", len(unplaced)).Msg("Rating table unreadable, awards escalated")
		e.record(ctx, result.ID, journal.StageRatingTable, unplaced, err)
	}
}

// score reads what a finished game needs and applies it to the batch.
// Read failures come back wrapped in ErrNotScored.
func (e *Engine) score(ctx context.Context, batch *Batch, game *models.Game, outcome models.Outcome) ([]models.ScoreDelta, error) {
	coeffs, err := retry.Value(ctx, e.policy, "db.coefficients", func(ctx context.Context) (models.Coefficients, error) {
		return e.games.GetCoefficients(ctx, game.Key)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotScored, err)
	}

	answers, err := retry.Value(ctx, e.policy, "db.answers", func(ctx context.Context) ([]models.Answer, error) {
		return e.answers.ListByGame(ctx, game.Key, game.TournamentType)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotScored, err)
	}

	return batch.Apply(ctx, game, outcome, coeffs, answers)
}

func (e *Engine) escalate(ctx context.Context, cycleID string, err error) {
	var flushErr *FlushError
	if !errors.As(err, &flushErr) {
		return
	}
	log.Error().
		Err(flushErr.Err).
		Str("cycle", cycleID).
		Str("stage", string(flushErr.Stage)).
		Int("deltas", len(flushErr.Deltas)).
		Msg("Score batch not written")
	e.record(ctx, cycleID, flushErr.Stage, flushErr.Deltas, flushErr.Err)
}

func (e *Engine) recordUnscored(ctx context.Context, cycleID string, game *models.Game, outcome models.Outcome, cause error) {
	if e.journal == nil {
		log.Error().
			Str("cycle", cycleID).
			Str("game", game.Key).
			Str("outcome", outcome.String()).
			Msg("No journal configured, unscored game must be scored by hand")
		return
	}
	if _, err := e.journal.RecordUnscored(context.WithoutCancel(ctx), cycleID, game, outcome, cause); err != nil {
		log.Error().
			Err(err).
			Str("cycle", cycleID).
			Str("game", game.Key).
			Str("outcome", outcome.String()).
			Msg("Failed to journal unscored game, score it by hand")
	}
}

func (e *Engine) record(ctx context.Context, cycleID string, stage journal.Stage, deltas []models.ScoreDelta, cause error) {
	if e.journal == nil || len(deltas) == 0 {
		return
	}
	if _, err := e.journal.Record(context.WithoutCancel(ctx), cycleID, stage, deltas, cause); err != nil {
		log.Error().
			Err(err).
			Str("cycle", cycleID).
			Interface("deltas", deltas).
			Msg("Failed to journal score batch, replay by hand")
	}
}
