package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/feed"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/journal"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/repository"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/retry"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/sheets"
)

var errRemote = errors.New("remote unavailable")

func testPolicy() retry.Policy {
	return retry.Policy{Attempts: 2}
}

func testLayout() *layout.Layout {
	l, err := layout.New(models.TournamentTypes...)
	if err != nil {
		panic(err)
	}
	return l
}

// fakeFeed serves scripted blobs per game key; each fetch pops the next one
type fakeFeed struct {
	blobs map[string][]string
	calls map[string]int
	fail  map[string]bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{blobs: map[string][]string{}, calls: map[string]int{}, fail: map[string]bool{}}
}

func (f *fakeFeed) script(key string, bodies ...string) {
	f.blobs[key] = append(f.blobs[key], bodies...)
}

func (f *fakeFeed) FetchGame(_ context.Context, key string) (feed.Blob, error) {
	f.calls[key]++
	if f.fail[key] {
		return nil, errRemote
	}
	queue := f.blobs[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted blob for %s", key)
	}
	body := queue[0]
	if len(queue) > 1 {
		f.blobs[key] = queue[1:]
	}
	return feed.ParseBlob(body), nil
}

type statusWrite struct {
	key    string
	status models.Status
}

type fakeGames struct {
	tracked     map[models.TournamentType][]*models.Game
	coeffs      map[string]models.Coefficients
	writes      []statusWrite
	finalScores map[string][2]int
	failList    bool
	failStatus  bool
	failCoeffs  bool
}

func newFakeGames() *fakeGames {
	return &fakeGames{
		tracked:     map[models.TournamentType][]*models.Game{},
		coeffs:      map[string]models.Coefficients{},
		finalScores: map[string][2]int{},
	}
}

func (f *fakeGames) ListTracked(_ context.Context, tt models.TournamentType) ([]*models.Game, error) {
	if f.failList {
		return nil, errRemote
	}
	var out []*models.Game
	for _, g := range f.tracked[tt] {
		if g.Status < models.StatusFinished {
			out = append(out, g)
		}
	}
	return out, nil
}

func (f *fakeGames) UpdateStatus(_ context.Context, key string, _ models.TournamentType, status models.Status) error {
	if f.failStatus {
		return errRemote
	}
	f.writes = append(f.writes, statusWrite{key: key, status: status})
	return nil
}

func (f *fakeGames) SetFinalScore(_ context.Context, key string, _ models.TournamentType, home, away int) error {
	f.finalScores[key] = [2]int{home, away}
	return nil
}

func (f *fakeGames) GetCoefficients(_ context.Context, key string) (models.Coefficients, error) {
	if f.failCoeffs {
		return models.Coefficients{}, errRemote
	}
	c, ok := f.coeffs[key]
	if !ok {
		return c, errors.New("not found")
	}
	return c, nil
}

type fakeAnswers map[string][]models.Answer

func (f fakeAnswers) ListByGame(_ context.Context, key string, tt models.TournamentType) ([]models.Answer, error) {
	var out []models.Answer
	for _, a := range f[key] {
		if a.TournamentType == tt {
			out = append(out, a)
		}
	}
	return out, nil
}

type fakeNicknames map[int64]string

func (f fakeNicknames) NicknameByChatID(_ context.Context, chatID int64) (string, error) {
	n, ok := f[chatID]
	if !ok {
		return "", fmt.Errorf("user chat_id=%d: %w", chatID, repository.ErrNotFound)
	}
	return n, nil
}

// flakyNicknames fails every lookup with a transport error
type flakyNicknames struct {
	calls int
}

func (f *flakyNicknames) NicknameByChatID(context.Context, int64) (string, error) {
	f.calls++
	return "", errRemote
}

type fakeScores struct {
	batches [][]models.ScoreDelta
	fail    bool
}

func (f *fakeScores) AddScores(_ context.Context, deltas []models.ScoreDelta) error {
	if f.fail {
		return errRemote
	}
	f.batches = append(f.batches, deltas)
	return nil
}

type sortCall struct {
	a1    string
	specs []sheets.SortSpec
}

// fakeTable answers column reads from columns and range reads from ranges
type fakeTable struct {
	columns   map[int][]string
	ranges    map[string][][]string
	updates   [][]sheets.CellUpdate
	sorts     []sortCall
	failRead  bool
	failWrite bool
	reads     int
}

func newFakeTable() *fakeTable {
	return &fakeTable{columns: map[int][]string{}, ranges: map[string][][]string{}}
}

func (f *fakeTable) ColumnValues(_ context.Context, col int) ([]string, error) {
	f.reads++
	if f.failRead {
		return nil, errRemote
	}
	return f.columns[col], nil
}

func (f *fakeTable) Get(_ context.Context, a1 string) ([][]string, error) {
	f.reads++
	if f.failRead {
		return nil, errRemote
	}
	return f.ranges[a1], nil
}

func (f *fakeTable) BatchUpdate(_ context.Context, updates []sheets.CellUpdate) error {
	if f.failWrite {
		return errRemote
	}
	f.updates = append(f.updates, updates)
	return nil
}

func (f *fakeTable) Sort(_ context.Context, a1 string, specs ...sheets.SortSpec) error {
	f.sorts = append(f.sorts, sortCall{a1: a1, specs: specs})
	return nil
}

type mark struct {
	key     string
	outcome models.Outcome
}

type fakeMarker struct {
	marks []mark
	fail  bool
}

func (f *fakeMarker) MarkResult(_ context.Context, _ models.TournamentType, key string, outcome models.Outcome) error {
	if f.fail {
		return errRemote
	}
	f.marks = append(f.marks, mark{key: key, outcome: outcome})
	return nil
}

type journalEntry struct {
	cycleID string
	stage   journal.Stage
	deltas  []models.ScoreDelta
	game    string
	outcome models.Outcome
}

type fakeJournal struct {
	entries []journalEntry
}

func (f *fakeJournal) Record(_ context.Context, cycleID string, stage journal.Stage, deltas []models.ScoreDelta, _ error) (int64, error) {
	f.entries = append(f.entries, journalEntry{cycleID: cycleID, stage: stage, deltas: deltas})
	return int64(len(f.entries)), nil
}

func (f *fakeJournal) RecordUnscored(_ context.Context, cycleID string, game *models.Game, outcome models.Outcome, _ error) (int64, error) {
	f.entries = append(f.entries, journalEntry{cycleID: cycleID, stage: journal.StageScoring, game: game.Key, outcome: outcome})
	return int64(len(f.entries)), nil
}
