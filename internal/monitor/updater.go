package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/metrics"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/repository"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/scoring"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"github.com/rs/zerolog/log"
)

// ErrFlushFailed marks a score batch that did not reach both stores
var ErrFlushFailed = errors.New("score batch not written")

// ErrNotScored marks a finished game whose awards could not be computed
var ErrNotScored = errors.New("game not scored")

// FlushError carries the batch that failed and the first store it missed
type FlushError struct {
	Stage  journal.Stage
	Deltas []models.ScoreDelta
	Err    error
}

func (e *FlushError) Error() string {
	return fmt.Sprintf("%v at %s (%d deltas): %v", ErrFlushFailed, e.Stage, len(e.Deltas), e.Err)
}

func (e *FlushError) Unwrap() []error {
	return []error{ErrFlushFailed, e.Err}
}

// Updater turns winning predictions into rating table and database writes
type Updater struct {
	layout    *layout.Layout
	table     RatingTable
	nicknames NicknameResolver
	scores    ScoreStore
	policy    retry.Policy
}

// NewUpdater creates an updater
func NewUpdater(l *layout.Layout, table RatingTable, nicknames NicknameResolver, scores ScoreStore, policy retry.Policy) *Updater {
	return &Updater{layout: l, table: table, nicknames: nicknames, scores: scores, policy: policy}
}

type rowKey struct {
	nickname   string
	tournament string
}

// block is one tournament type's rating rows as read at the start of a cycle,
// plus the scores pending in the batch
type block struct {
	rows    map[rowKey]int
	scores  map[int]int
	invalid map[int]string
	dirty   map[int]bool
}

// Batch collects one cycle's awards. It is not safe for concurrent use.
type Batch struct {
	u      *Updater
	blocks map[models.TournamentType]*block
	deltas []models.ScoreDelta
}

// NewBatch starts an empty batch
func (u *Updater) NewBatch() *Batch {
	return &Batch{u: u, blocks: make(map[models.TournamentType]*block)}
}

// Deltas returns the deltas placed in the rating table so far
func (b *Batch) Deltas() []models.ScoreDelta {
	return b.deltas
}

// Types returns the tournament types with pending writes, in block order
func (b *Batch) Types() []models.TournamentType {
	var types []models.TournamentType
	for _, tt := range b.u.layout.Types() {
		if blk, ok := b.blocks[tt]; ok && len(blk.dirty) > 0 {
			types = append(types, tt)
		}
	}
	return types
}

// Apply awards the winning coefficient's points to every answer that
// predicted outcome. Answers whose user or rating row does not exist are
// skipped. Any other nickname failure leaves the whole game unplaced and
// returns ErrNotScored. On other errors the returned deltas are the game's
// awards that could not be placed in the batch.
func (b *Batch) Apply(ctx context.Context, game *models.Game, outcome models.Outcome, coeffs models.Coefficients, answers []models.Answer) ([]models.ScoreDelta, error) {
	if !outcome.Decided() {
		return nil, nil
	}

	logger := log.With().Str("game", game.Key).Str("type", game.TournamentType.String()).Logger()

	points := scoring.ScoreFor(coeffs.For(outcome))
	if points == scoring.NoStake {
		logger.Warn().Str("outcome", outcome.String()).Msg("No coefficient for the winning outcome, nothing awarded")
		return nil, nil
	}

	var deltas []models.ScoreDelta
	for _, a := range answers {
		if a.Outcome != outcome || a.TournamentType != game.TournamentType {
			continue
		}

		nickname, err := retry.Value(ctx, b.u.policy, "db.nickname", func(ctx context.Context) (string, error) {
			return b.u.nicknames.NicknameByChatID(ctx, a.ChatID)
		})
		if errors.Is(err, repository.ErrNotFound) {
			logger.Warn().Err(err).Int64("chat_id", a.ChatID).Msg("Nickname not registered, answer skipped")
			metrics.RecordError("updater", "nickname_not_found")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: nickname of chat %d: %w", ErrNotScored, a.ChatID, err)
		}

		deltas = append(deltas, models.ScoreDelta{
			Nickname:       nickname,
			Tournament:     a.Tournament,
			TournamentType: game.TournamentType,
			Points:         points,
		})
	}

	if len(deltas) == 0 {
		return nil, nil
	}

	placed, err := b.place(ctx, deltas)
	if err != nil {
		return deltas, err
	}

	logger.Info().Int("points", points).Int("winners", placed).Msg("Points awarded")
	return nil, nil
}

// ApplyDeltas places already computed deltas, as when replaying the journal
func (b *Batch) ApplyDeltas(ctx context.Context, deltas []models.ScoreDelta) error {
	_, err := b.place(ctx, deltas)
	return err
}

func (b *Batch) place(ctx context.Context, deltas []models.ScoreDelta) (int, error) {
	placed := 0
	for _, d := range deltas {
		blk, err := b.block(ctx, d.TournamentType)
		if err != nil {
			return placed, err
		}

		row, ok := blk.rows[rowKey{nickname: d.Nickname, tournament: d.Tournament}]
		if !ok {
			log.Warn().
				Str("nickname", d.Nickname).
				Str("tournament", d.Tournament).
				Str("type", d.TournamentType.String()).
				Msg("Participant not in rating table, award skipped")
			metrics.RecordError("updater", "participant_not_in_table")
			continue
		}
		if raw, bad := blk.invalid[row]; bad {
			log.Warn().
				Str("nickname", d.Nickname).
				Int("row", row).
				Str("cell", raw).
				Msg("Rating cell is not a number, award skipped")
			metrics.RecordError("updater", "invalid_score_cell")
			continue
		}

		blk.scores[row] += d.Points
		blk.dirty[row] = true
		b.deltas = append(b.deltas, d)
		placed++
	}
	return placed, nil
}

// block loads a type's rows on first use. The last row is taken from the
// nickname column, then the block is read from the first data row down.
func (b *Batch) block(ctx context.Context, tt models.TournamentType) (*block, error) {
	if blk, ok := b.blocks[tt]; ok {
		return blk, nil
	}

	u := b.u
	nickCol := u.layout.ColumnIndex(layout.FieldNickname, tt)

	column, err := retry.Value(ctx, u.policy, "sheets.column_values", func(ctx context.Context) ([]string, error) {
		return u.table.ColumnValues(ctx, nickCol)
	})
	if err != nil {
		return nil, fmt.Errorf("reading %s rating rows: %w", tt, err)
	}

	blk := &block{
		rows:    make(map[rowKey]int),
		scores:  make(map[int]int),
		invalid: make(map[int]string),
		dirty:   make(map[int]bool),
	}

	lastRow := len(column)
	if lastRow >= layout.FirstDataRow {
		a1 := u.layout.BlockRange(tt, layout.FirstDataRow, lastRow)
		values, err := retry.Value(ctx, u.policy, "sheets.get", func(ctx context.Context) ([][]string, error) {
			return u.table.Get(ctx, a1)
		})
		if err != nil {
			return nil, fmt.Errorf("reading %s rating rows: %w", tt, err)
		}

		for i, cells := range values {
			row := layout.FirstDataRow + i
			nickname := strings.TrimSpace(cellAt(cells, layout.FieldNickname))
			if nickname == "" {
				continue
			}
			key := rowKey{nickname: nickname, tournament: strings.TrimSpace(cellAt(cells, layout.FieldTournament))}
			if _, dup := blk.rows[key]; dup {
				continue
			}
			blk.rows[key] = row

			raw := strings.TrimSpace(cellAt(cells, layout.FieldScore))
			if raw == "" {
				continue
			}
			score, err := strconv.Atoi(raw)
			if err != nil {
				blk.invalid[row] = raw
				continue
			}
			blk.scores[row] = score
		}
	}

	log.Debug().Str("type", tt.String()).Int("rows", len(blk.rows)).Msg("Rating block loaded")

	b.blocks[tt] = blk
	return blk, nil
}

func cellAt(cells []string, f layout.Field) string {
	if int(f) < len(cells) {
		return cells[f]
	}
	return ""
}

// Flush writes the batch: every pending cell in one rating table request,
// then the same deltas to the database in one transaction. The rating table
// goes first; if it fails the database is left untouched.
func (u *Updater) Flush(ctx context.Context, b *Batch) error {
	if len(b.deltas) == 0 {
		return nil
	}

	var updates []sheets.CellUpdate
	for _, tt := range b.Types() {
		blk := b.blocks[tt]
		rows := make([]int, 0, len(blk.dirty))
		for row := range blk.dirty {
			rows = append(rows, row)
		}
		sort.Ints(rows)

		for _, row := range rows {
			updates = append(updates, sheets.CellUpdate{
				Range:  u.layout.Cell(layout.FieldScore, tt, row),
				Values: [][]interface{}{{blk.scores[row]}},
			})
		}
	}

	err := retry.Do(ctx, u.policy, "sheets.batch_update", func(ctx context.Context) error {
		return u.table.BatchUpdate(ctx, updates)
	})
	if err != nil {
		return &FlushError{Stage: journal.StageRatingTable, Deltas: b.deltas, Err: err}
	}

	err = retry.Do(ctx, u.policy, "db.add_scores", func(ctx context.Context) error {
		return u.scores.AddScores(ctx, b.deltas)
	})
	if err != nil {
		return &FlushError{Stage: journal.StageDatabase, Deltas: b.deltas, Err: err}
	}

	for _, d := range b.deltas {
		metrics.RecordPointsAwarded(d.TournamentType.String(), d.Points)
	}

	log.Info().Int("cells", len(updates)).Int("deltas", len(b.deltas)).Msg("Score batch written")
	return nil
}
