package monitor

import (
	"context"
	"testing"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/cache"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type engineFixture struct {
	feed    *fakeFeed
	games   *fakeGames
	answers fakeAnswers
	scores  *fakeScores
	table   *fakeTable
	marker  *fakeMarker
	journal *fakeJournal
	engine  *Engine
}

// newEngineFixture tracks one live FAST game "G" that alice predicted
func newEngineFixture(t *testing.T, guard Guard) *engineFixture {
	t.Helper()
	return newEngineFixtureWith(t, guard, fakeNicknames{1: "alice", 2: "bob"})
}

func newEngineFixtureWith(t *testing.T, guard Guard, nicknames NicknameResolver) *engineFixture {
	t.Helper()

	f := &engineFixture{
		feed:    newFakeFeed(),
		games:   newFakeGames(),
		answers: fakeAnswers{},
		scores:  &fakeScores{},
		table:   fastTable(),
		marker:  &fakeMarker{},
		journal: &fakeJournal{},
	}

	f.games.tracked[models.Fast] = []*models.Game{
		{Key: "G", TournamentType: models.Fast, Status: models.StatusLive},
	}
	f.games.coeffs["G"] = models.Coefficients{"1,30", "2,50", "3,00"}
	f.answers["G"] = []models.Answer{
		{ChatID: 1, Outcome: models.OutcomeFirst, TournamentType: models.Fast, Tournament: "T1"},
		{ChatID: 2, Outcome: models.OutcomeSecond, TournamentType: models.Fast, Tournament: "T1"},
	}

	engine, err := New(Deps{
		Layout:    testLayout(),
		Games:     f.games,
		Answers:   f.answers,
		Nicknames: nicknames,
		Scores:    f.scores,
		Feed:      f.feed,
		Table:     f.table,
		Marker:    f.marker,
		Journal:   f.journal,
		Guard:     guard,
		Policy:    testPolicy(),
	})
	require.NoError(t, err)
	f.engine = engine
	return f
}

func TestEngine_FinishedGameScored(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")
	ctx := context.Background()

	result, err := f.engine.RunCycle(ctx, models.Fast)
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, []string{"G"}, result.Finished)
	assert.Equal(t, 1, result.Awarded)
	assert.Empty(t, result.Exhausted)

	require.Len(t, f.table.updates, 1)
	assert.Equal(t, []sheets.CellUpdate{{Range: "B5", Values: [][]interface{}{{15}}}}, f.table.updates[0])

	require.Len(t, f.scores.batches, 1)
	assert.Equal(t, []models.ScoreDelta{
		{Nickname: "alice", Tournament: "T1", TournamentType: models.Fast, Points: 5},
	}, f.scores.batches[0])

	assert.Equal(t, []statusWrite{{key: "G", status: models.StatusFinished}}, f.games.writes)
	assert.Equal(t, [2]int{2, 1}, f.games.finalScores["G"])
	assert.Equal(t, []mark{{key: "G", outcome: models.OutcomeFirst}}, f.marker.marks)

	require.Len(t, f.table.sorts, 1)
	assert.Equal(t, "A3:C5", f.table.sorts[0].a1)
	assert.Empty(t, f.journal.entries)

	// The finished game is no longer tracked: the type is exhausted and nothing is scored twice
	result, err = f.engine.RunCycle(ctx, models.Fast)
	require.NoError(t, err)
	assert.Equal(t, []models.TournamentType{models.Fast}, result.Exhausted)
	assert.Len(t, f.table.updates, 1)
	assert.Len(t, f.scores.batches, 1)
}

func TestEngine_MissingScoreKeyNotScored(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.feed.script("G", "DA÷3¬DE÷2¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)

	assert.Equal(t, []string{"G"}, result.Finished)
	assert.Zero(t, result.Awarded)
	assert.Empty(t, f.table.updates)
	assert.Empty(t, f.scores.batches)
	assert.Equal(t, []mark{{key: "G", outcome: models.OutcomeUnknown}}, f.marker.marks, "Marked red")
}

func TestEngine_UnreadableCoefficientsJournalGame(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.games.failCoeffs = true
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)

	assert.Equal(t, []string{"G"}, result.Finished)
	assert.Zero(t, result.Awarded)
	assert.Empty(t, f.table.updates)
	assert.Empty(t, f.scores.batches)

	require.Len(t, f.journal.entries, 1)
	entry := f.journal.entries[0]
	assert.Equal(t, result.ID, entry.cycleID)
	assert.Equal(t, journal.StageScoring, entry.stage)
	assert.Equal(t, "G", entry.game)
	assert.Equal(t, models.OutcomeFirst, entry.outcome)

	// The game is already finished in the database, so only the journal still holds its points
	f.games.failCoeffs = false
	result, err = f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)
	assert.Equal(t, []models.TournamentType{models.Fast}, result.Exhausted)
	assert.Len(t, f.journal.entries, 1)
}

func TestEngine_NicknameOutageJournalsGame(t *testing.T) {
	nicknames := &flakyNicknames{}
	f := newEngineFixtureWith(t, nil, nicknames)
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)

	assert.Positive(t, nicknames.calls)
	assert.Zero(t, result.Awarded)
	assert.Empty(t, f.table.updates)
	assert.Empty(t, f.scores.batches)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, journal.StageScoring, f.journal.entries[0].stage)
	assert.Equal(t, "G", f.journal.entries[0].game)
	assert.Equal(t, models.OutcomeFirst, f.journal.entries[0].outcome)
}

func TestEngine_LiveGameOnlyAdvances(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.games.tracked[models.Fast][0].Status = models.StatusScheduled
	f.feed.script("G", "DA÷2¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)

	assert.Empty(t, result.Finished)
	assert.Equal(t, []statusWrite{{key: "G", status: models.StatusLive}}, f.games.writes)
	assert.Empty(t, f.table.updates)
	assert.Empty(t, f.table.sorts)
}

func TestEngine_GameFailuresIsolated(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.games.tracked[models.Fast] = append([]*models.Game{
		{Key: "DOWN", TournamentType: models.Fast, Status: models.StatusLive},
	}, f.games.tracked[models.Fast]...)
	f.feed.fail["DOWN"] = true
	f.feed.script("G", "DA÷3¬DE÷1¬DF÷0¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)

	assert.Equal(t, []string{"G"}, result.Finished)
	assert.Equal(t, 1, result.Awarded)
}

func TestEngine_RatingTableWriteEscalated(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.table.failWrite = true
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.ErrorIs(t, err, ErrFlushFailed)
	require.NotNil(t, result)

	assert.Empty(t, f.scores.batches, "Database not written ahead of the rating table")
	require.Len(t, f.journal.entries, 1)
	entry := f.journal.entries[0]
	assert.Equal(t, result.ID, entry.cycleID)
	assert.Equal(t, journal.StageRatingTable, entry.stage)
	assert.Equal(t, "alice", entry.deltas[0].Nickname)
}

func TestEngine_DatabaseWriteEscalated(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.scores.fail = true
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")

	_, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.ErrorIs(t, err, ErrFlushFailed)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, journal.StageDatabase, f.journal.entries[0].stage)
	assert.Len(t, f.table.updates, 1)
}

func TestEngine_UnreadableTableJournalsGame(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.table.failRead = true
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")

	_, err := f.engine.RunCycle(context.Background(), models.Fast)
	require.NoError(t, err)

	require.Len(t, f.journal.entries, 1)
	assert.Equal(t, journal.StageRatingTable, f.journal.entries[0].stage)
	assert.Equal(t, []models.ScoreDelta{
		{Nickname: "alice", Tournament: "T1", TournamentType: models.Fast, Points: 5},
	}, f.journal.entries[0].deltas)
}

func TestEngine_ListFailure(t *testing.T) {
	f := newEngineFixture(t, nil)
	f.games.failList = true

	result, err := f.engine.RunCycle(context.Background(), models.Fast, models.Slow)
	require.NoError(t, err)
	assert.Equal(t, []models.TournamentType{models.Fast, models.Slow}, result.Failed)
	assert.Empty(t, result.Exhausted)
}

type lockedGuard struct {
	locked map[string]bool
	ran    []string
}

func (g *lockedGuard) Do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if g.locked[name] {
		return cache.ErrLocked
	}
	g.ran = append(g.ran, name)
	return fn(ctx)
}

func TestEngine_GuardSkipsHeldTypes(t *testing.T) {
	guard := &lockedGuard{locked: map[string]bool{"SLOW": true}}
	f := newEngineFixture(t, guard)
	f.feed.script("G", "DA÷3¬DE÷2¬DF÷1¬")

	result, err := f.engine.RunCycle(context.Background(), models.Fast, models.Slow, models.Standard)
	require.NoError(t, err)

	assert.Equal(t, []models.TournamentType{models.Slow}, result.Skipped)
	assert.Equal(t, []string{"FAST", "STANDART"}, guard.ran)
	assert.Equal(t, []models.TournamentType{models.Standard}, result.Exhausted)
	assert.Equal(t, 1, result.Awarded)
}

func TestEngine_RejectsTypeWithoutBlock(t *testing.T) {
	l, err := layout.New(models.Fast)
	require.NoError(t, err)

	engine, err := New(Deps{
		Layout:    l,
		Games:     newFakeGames(),
		Answers:   fakeAnswers{},
		Nicknames: fakeNicknames{},
		Scores:    &fakeScores{},
		Feed:      newFakeFeed(),
		Table:     newFakeTable(),
		Policy:    testPolicy(),
	})
	require.NoError(t, err)

	_, err = engine.RunCycle(context.Background(), models.Slow)
	assert.Error(t, err)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Deps{Layout: testLayout()})
	assert.Error(t, err)
}
