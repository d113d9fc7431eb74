package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"

	"github.com/rs/zerolog/log"
)

// Escalations is the journal as seen by a replay
type Escalations interface {
	Pending(ctx context.Context) ([]journal.Entry, error)
	Resolve(ctx context.Context, id int64) error
	Restage(ctx context.Context, id int64, stage journal.Stage, deltas []models.ScoreDelta, cause error) error
}

// ReplayResult counts what happened to the pending entries
type ReplayResult struct {
	Resolved int
	Restaged int
	Failed   int
}

// Replay writes every pending journal entry to the stores it missed. It
// holds the guard of every rating block, so it refuses to run while a
// worker is mid-cycle.
func (e *Engine) Replay(ctx context.Context, esc Escalations) (*ReplayResult, error) {
	entries, err := esc.Pending(ctx)
	if err != nil {
		return nil, err
	}
	result := &ReplayResult{}
	if len(entries) == 0 {
		log.Info().Msg("Journal is empty, nothing to replay")
		return result, nil
	}

	held := &CycleResult{}
	err = e.guarded(ctx, e.layout.Types(), nil, held, func(ctx context.Context, _ []models.TournamentType) error {
		if len(held.Skipped) > 0 {
			return errBlocksBusy(held.Skipped)
		}
		for _, entry := range entries {
			e.replayEntry(ctx, esc, entry, result)
		}
		return nil
	})
	if err == nil && len(held.Skipped) > 0 {
		err = errBlocksBusy(held.Skipped)
	}
	if err != nil {
		return result, err
	}

	log.Info().
		Int("resolved", result.Resolved).
		Int("restaged", result.Restaged).
		Int("failed", result.Failed).
		Msg("Journal replay done")

	return result, nil
}

func errBlocksBusy(types []models.TournamentType) error {
	return fmt.Errorf("rating blocks %v are being monitored, retry later", types)
}

func (e *Engine) replayEntry(ctx context.Context, esc Escalations, entry journal.Entry, result *ReplayResult) {
	logger := log.With().Int64("entry", entry.ID).Str("cycle", entry.CycleID).Str("stage", string(entry.Stage)).Logger()

	switch entry.Stage {
	case journal.StageScoring:
		if !e.layout.Has(entry.TournamentType) || !entry.Outcome.Decided() {
			logger.Error().Str("game", entry.GameKey).Msg("Scoring entry has no rating block or outcome, left pending")
			result.Failed++
			return
		}

		game := &models.Game{Key: entry.GameKey, TournamentType: entry.TournamentType}
		batch := e.updater.NewBatch()
		unplaced, err := e.score(ctx, batch, game, entry.Outcome)
		if errors.Is(err, ErrNotScored) {
			logger.Error().Err(err).Str("game", entry.GameKey).Msg("Game still cannot be scored")
			result.Failed++
			return
		}
		if err != nil {
			e.restage(ctx, esc, entry, journal.StageRatingTable, unplaced, err, result)
			return
		}
		e.flushReplay(ctx, esc, entry, batch, result)

	case journal.StageRatingTable:
		batch := e.updater.NewBatch()
		if err := batch.ApplyDeltas(ctx, entry.Deltas); err != nil {
			logger.Error().Err(err).Msg("Rating table still unreadable")
			result.Failed++
			return
		}
		e.flushReplay(ctx, esc, entry, batch, result)

	case journal.StageDatabase:
		err := retry.Do(ctx, e.policy, "db.add_scores", func(ctx context.Context) error {
			return e.updater.scores.AddScores(ctx, entry.Deltas)
		})
		if err != nil {
			logger.Error().Err(err).Msg("Database still not writable")
			result.Failed++
			return
		}
		e.resolve(ctx, esc, entry, result)

	default:
		logger.Error().Msg("Unknown journal stage, entry left pending")
		result.Failed++
	}
}

// flushReplay writes a replayed batch and moves the entry as far as it got
func (e *Engine) flushReplay(ctx context.Context, esc Escalations, entry journal.Entry, batch *Batch, result *ReplayResult) {
	err := e.updater.Flush(ctx, batch)

	var flushErr *FlushError
	switch {
	case err == nil:
		e.resolve(ctx, esc, entry, result)
	case errors.As(err, &flushErr) && flushErr.Stage != entry.Stage:
		e.restage(ctx, esc, entry, flushErr.Stage, flushErr.Deltas, flushErr.Err, result)
	default:
		log.Error().Err(err).Int64("entry", entry.ID).Msg("Rating table still not writable")
		result.Failed++
		return
	}

	for _, tt := range batch.Types() {
		if err := e.aggregator.Resort(ctx, tt); err != nil {
			log.Error().Err(err).Str("type", tt.String()).Msg("Failed to sort rating block")
		}
	}
}

func (e *Engine) restage(ctx context.Context, esc Escalations, entry journal.Entry, stage journal.Stage, deltas []models.ScoreDelta, cause error, result *ReplayResult) {
	if err := esc.Restage(ctx, entry.ID, stage, deltas, cause); err != nil {
		log.Error().Err(err).Int64("entry", entry.ID).Str("stage", string(stage)).Msg("Entry not restaged, check it before the next replay")
		result.Failed++
		return
	}
	log.Warn().Err(cause).Int64("entry", entry.ID).Str("stage", string(stage)).Int("deltas", len(deltas)).Msg("Entry partly replayed")
	result.Restaged++
}

func (e *Engine) resolve(ctx context.Context, esc Escalations, entry journal.Entry, result *ReplayResult) {
	if err := esc.Resolve(ctx, entry.ID); err != nil {
		log.Error().Err(err).Int64("entry", entry.ID).Msg("Entry replayed but not resolved, remove it by hand")
		result.Failed++
		return
	}
	for _, d := range entry.Deltas {
		log.Debug().Int64("entry", entry.ID).Str("nickname", d.Nickname).Int("points", d.Points).Msg("Delta replayed")
	}
	result.Resolved++
}
