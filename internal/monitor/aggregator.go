package monitor

import (
	"context"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"github.com/rs/zerolog/log"
)

// Aggregator keeps each tournament type's rating block ordered
type Aggregator struct {
	layout *layout.Layout
	table  RatingTable
	policy retry.Policy
}

// NewAggregator creates an aggregator
func NewAggregator(l *layout.Layout, table RatingTable, policy retry.Policy) *Aggregator {
	return &Aggregator{layout: l, table: table, policy: policy}
}

// Resort orders a type's data rows by tournament name, then score, both
// descending. Header rows stay out of the sorted range.
func (a *Aggregator) Resort(ctx context.Context, tt models.TournamentType) error {
	nickCol := a.layout.ColumnIndex(layout.FieldNickname, tt)

	column, err := retry.Value(ctx, a.policy, "sheets.column_values", func(ctx context.Context) ([]string, error) {
		return a.table.ColumnValues(ctx, nickCol)
	})
	if err != nil {
		return err
	}

	lastRow := len(column)
	if lastRow <= layout.FirstDataRow {
		return nil
	}

	a1 := a.layout.BlockRange(tt, layout.FirstDataRow, lastRow)
	specs := []sheets.SortSpec{
		{Column: a.layout.ColumnIndex(layout.FieldTournament, tt), Descending: true},
		{Column: a.layout.ColumnIndex(layout.FieldScore, tt), Descending: true},
	}

	err = retry.Do(ctx, a.policy, "sheets.sort", func(ctx context.Context) error {
		return a.table.Sort(ctx, a1, specs...)
	})
	if err != nil {
		return err
	}

	log.Debug().Str("type", tt.String()).Str("range", a1).Msg("Rating block sorted")
	return nil
}

// Exhausted reports whether a type has no games left to track
func (a *Aggregator) Exhausted(tt models.TournamentType, tracked []*models.Game) bool {
	if len(tracked) > 0 {
		return false
	}
	log.Info().Str("type", tt.String()).Msg("No games left to track, tournament type complete")
	return true
}
