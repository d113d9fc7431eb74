package monitor

import (
	"context"
	"testing"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinnerOf(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.Outcome
	}{
		{"first wins", "DA÷3¬DE÷2¬DF÷1¬", models.OutcomeFirst},
		{"second wins", "DA÷3¬DE÷0¬DF÷3¬", models.OutcomeSecond},
		{"draw", "DA÷3¬DE÷1¬DF÷1¬", models.OutcomeDraw},
		{"multi-digit compared as numbers", "DA÷3¬DE÷10¬DF÷9¬", models.OutcomeFirst},
		{"missing DF", "DA÷3¬DE÷2¬", models.OutcomeUnknown},
		{"missing both", "DA÷3¬", models.OutcomeUnknown},
		{"non-numeric score", "DA÷3¬DE÷-¬DF÷1¬", models.OutcomeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeFeed()
			f.script("g", tt.body)
			tracker := NewTracker(f, newFakeGames(), nil, testPolicy())

			got, err := tracker.Winner(context.Background(), "g")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTracker_PollStatus(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷2¬")
	tracker := NewTracker(f, newFakeGames(), nil, testPolicy())

	status, err := tracker.PollStatus(context.Background(), "g")
	require.NoError(t, err)
	assert.Equal(t, models.StatusLive, status)

	f.fail["down"] = true
	_, err = tracker.PollStatus(context.Background(), "down")
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, 2, f.calls["down"], "Retried up to the policy bound")
}

func TestTracker_NeverMovesBackward(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷1¬", "DA÷2¬", "DA÷1¬", "DA÷2¬", "DA÷3¬DE÷1¬DF÷0¬", "DA÷2¬")
	games := newFakeGames()
	tracker := NewTracker(f, games, nil, testPolicy())

	game := &models.Game{Key: "g", TournamentType: models.Fast, Status: models.StatusScheduled}

	var observed []models.Status
	for i := 0; i < 6; i++ {
		obs, err := tracker.Observe(context.Background(), game)
		require.NoError(t, err)
		observed = append(observed, obs.Status)
	}

	for i := 1; i < len(observed); i++ {
		assert.GreaterOrEqual(t, observed[i], observed[i-1], "Observed statuses never decrease")
	}
	assert.Equal(t, models.StatusFinished, game.Status)
	assert.Equal(t, []statusWrite{
		{key: "g", status: models.StatusLive},
		{key: "g", status: models.StatusFinished},
	}, games.writes, "Each forward step persisted exactly once")
}

func TestTracker_ObserveFinished(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷3¬DE÷3¬DF÷1¬")
	games := newFakeGames()
	marker := &fakeMarker{}
	tracker := NewTracker(f, games, marker, testPolicy())

	game := &models.Game{Key: "g", TournamentType: models.Slow, Status: models.StatusLive}
	obs, err := tracker.Observe(context.Background(), game)
	require.NoError(t, err)

	assert.True(t, obs.Finished)
	assert.True(t, obs.Advanced)
	assert.Equal(t, models.OutcomeFirst, obs.Outcome)
	assert.Equal(t, [2]int{3, 1}, games.finalScores["g"])
	assert.Equal(t, int32(3), game.HomeScore.Int32)
	assert.Equal(t, []mark{{key: "g", outcome: models.OutcomeFirst}}, marker.marks)
}

func TestTracker_ObserveUndecidedMarksRed(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷3¬DE÷2¬")
	games := newFakeGames()
	marker := &fakeMarker{}
	tracker := NewTracker(f, games, marker, testPolicy())

	game := &models.Game{Key: "g", TournamentType: models.Fast, Status: models.StatusLive}
	obs, err := tracker.Observe(context.Background(), game)
	require.NoError(t, err)

	assert.True(t, obs.Finished)
	assert.False(t, obs.Outcome.Decided())
	assert.Empty(t, games.finalScores, "No final score without both keys")
	assert.Equal(t, []mark{{key: "g", outcome: models.OutcomeUnknown}}, marker.marks)
}

func TestTracker_MarkerFailureSwallowed(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷3¬DE÷2¬DF÷2¬")
	tracker := NewTracker(f, newFakeGames(), &fakeMarker{fail: true}, testPolicy())

	game := &models.Game{Key: "g", TournamentType: models.Fast, Status: models.StatusLive}
	obs, err := tracker.Observe(context.Background(), game)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDraw, obs.Outcome)
}

func TestTracker_StatusWriteFailure(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷2¬")
	games := newFakeGames()
	games.failStatus = true
	tracker := NewTracker(f, games, nil, testPolicy())

	game := &models.Game{Key: "g", TournamentType: models.Fast, Status: models.StatusScheduled}
	_, err := tracker.Observe(context.Background(), game)
	assert.ErrorIs(t, err, errRemote)
	assert.Equal(t, models.StatusScheduled, game.Status, "Unpersisted status is not adopted")
}

func TestTracker_BadStatusCode(t *testing.T) {
	f := newFakeFeed()
	f.script("g", "DA÷7¬")
	tracker := NewTracker(f, newFakeGames(), nil, testPolicy())

	game := &models.Game{Key: "g", TournamentType: models.Fast, Status: models.StatusScheduled}
	_, err := tracker.Observe(context.Background(), game)
	assert.Error(t, err)
}
