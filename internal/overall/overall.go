// Package overall maintains the cross-tournament rating: every nickname's
// total score over all tournaments, best first.
package overall

import (
	"context"
	"fmt"
	"time"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"go.uber.org/zap"
)

// StandingsSource totals participant scores
type StandingsSource interface {
	Standings(ctx context.Context) ([]models.Standing, error)
}

// Sheet is the overall rating worksheet: nickname in A, score in B,
// headers on rows 1 and 2
type Sheet interface {
	ColumnValues(ctx context.Context, col int) ([]string, error)
	Clear(ctx context.Context, a1 string) error
	BatchUpdate(ctx context.Context, updates []sheets.CellUpdate) error
}

// Syncer rewrites the overall rating from the database
type Syncer struct {
	source StandingsSource
	sheet  Sheet
	logger *zap.Logger
	policy retry.Policy
}

// NewSyncer creates a roll-up syncer
func NewSyncer(source StandingsSource, sheet Sheet, logger *zap.Logger, policy retry.Policy) *Syncer {
	return &Syncer{
		source: source,
		sheet:  sheet,
		logger: logger,
		policy: policy,
	}
}

// RollUp replaces the overall rating with the current totals. Running it
// twice gives the same sheet. types only label the run in the logs.
func (s *Syncer) RollUp(ctx context.Context, types ...models.TournamentType) error {
	start := time.Now()
	s.logger.Info("Starting overall rating roll-up", zap.Any("types", types))

	standings, err := retry.Value(ctx, s.policy, "db.standings", func(ctx context.Context) ([]models.Standing, error) {
		return s.source.Standings(ctx)
	})
	if err != nil {
		s.logger.Error("Read standings failed", zap.Error(err))
		return fmt.Errorf("reading standings: %w", err)
	}

	existing, err := retry.Value(ctx, s.policy, "sheets.column_values", func(ctx context.Context) ([]string, error) {
		return s.sheet.ColumnValues(ctx, 0)
	})
	if err != nil {
		s.logger.Error("Read overall rating failed", zap.Error(err))
		return fmt.Errorf("reading overall rating: %w", err)
	}

	first := layout.FirstDataRow
	if last := len(existing); last >= first {
		a1 := fmt.Sprintf("A%d:B%d", first, last)
		err := retry.Do(ctx, s.policy, "sheets.clear", func(ctx context.Context) error {
			return s.sheet.Clear(ctx, a1)
		})
		if err != nil {
			s.logger.Error("Clear overall rating failed", zap.String("range", a1), zap.Error(err))
			return fmt.Errorf("clearing overall rating: %w", err)
		}
	}

	if len(standings) > 0 {
		rows := make([][]interface{}, len(standings))
		for i, st := range standings {
			rows[i] = []interface{}{st.Nickname, st.Score}
		}
		update := sheets.CellUpdate{
			Range:  fmt.Sprintf("A%d:B%d", first, first+len(standings)-1),
			Values: rows,
		}

		err := retry.Do(ctx, s.policy, "sheets.batch_update", func(ctx context.Context) error {
			return s.sheet.BatchUpdate(ctx, []sheets.CellUpdate{update})
		})
		if err != nil {
			s.logger.Error("Write overall rating failed", zap.Error(err))
			return fmt.Errorf("writing overall rating: %w", err)
		}
	}

	s.logger.Info("Overall rating roll-up completed",
		zap.Duration("duration", time.Since(start)),
		zap.Int("participants", len(standings)))

	return nil
}
