package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"
)

// fakeSheets serves the handful of Sheets endpoints the client uses
type fakeSheets struct {
	mu       sync.Mutex
	columns  map[string][]interface{} // qualified "'title'!X:X" -> column values
	ranges   map[string][][]interface{}
	values   []*gsheets.BatchUpdateValuesRequest
	requests []*gsheets.Request
	cleared  []string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == "/v4/spreadsheets/sid":
		json.NewEncoder(w).Encode(gsheets.Spreadsheet{Sheets: []*gsheets.Sheet{
			{Properties: &gsheets.SheetProperties{SheetId: 0, Title: "Rating"}},
			{Properties: &gsheets.SheetProperties{SheetId: 11, Title: "Day"}},
		}})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/sid/values/"):
		a1 := strings.TrimPrefix(path, "/v4/spreadsheets/sid/values/")
		resp := gsheets.ValueRange{Range: a1}
		if col, ok := f.columns[a1]; ok {
			resp.MajorDimension = "COLUMNS"
			resp.Values = [][]interface{}{col}
		} else {
			resp.Values = f.ranges[a1]
		}
		json.NewEncoder(w).Encode(resp)

	case r.Method == http.MethodPost && path == "/v4/spreadsheets/sid/values:batchUpdate":
		var req gsheets.BatchUpdateValuesRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.values = append(f.values, &req)
		w.Write([]byte(`{}`))

	case r.Method == http.MethodPost && strings.HasSuffix(path, ":clear"):
		f.cleared = append(f.cleared, strings.TrimSuffix(strings.TrimPrefix(path, "/v4/spreadsheets/sid/values/"), ":clear"))
		w.Write([]byte(`{}`))

	case r.Method == http.MethodPost && path == "/v4/spreadsheets/sid:batchUpdate":
		var req gsheets.BatchUpdateSpreadsheetRequest
		json.NewDecoder(r.Body).Decode(&req)
		f.requests = append(f.requests, req.Requests...)
		w.Write([]byte(`{}`))

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func setupClient(t *testing.T, fake *fakeSheets) *Client {
	t.Helper()

	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(context.Background(), "sid", "",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return client
}

func TestClient_Worksheet(t *testing.T) {
	client := setupClient(t, &fakeSheets{})
	ctx := context.Background()

	ws, err := client.Worksheet(ctx, "Day")
	require.NoError(t, err)
	assert.Equal(t, "Day", ws.Title())
	assert.Equal(t, int64(11), ws.id)

	_, err = client.Worksheet(ctx, "Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorksheet_ReadValues(t *testing.T) {
	fake := &fakeSheets{
		columns: map[string][]interface{}{
			"'Rating'!B:B": {"Score", "", "10", "20"},
		},
		ranges: map[string][][]interface{}{
			"'Rating'!A3:C4": {{"alice", "10", "T1"}, {"bob", "20"}},
		},
	}
	client := setupClient(t, fake)
	ctx := context.Background()

	ws, err := client.Worksheet(ctx, "Rating")
	require.NoError(t, err)

	col, err := ws.ColumnValues(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Score", "", "10", "20"}, col)

	rows, err := ws.Get(ctx, "A3:C4")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"alice", "10", "T1"}, {"bob", "20"}}, rows)

	row, err := ws.FindRow(ctx, 1, "20")
	require.NoError(t, err)
	assert.Equal(t, 4, row)

	_, err = ws.FindRow(ctx, 1, "99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWorksheet_BatchUpdate(t *testing.T) {
	fake := &fakeSheets{}
	client := setupClient(t, fake)
	ctx := context.Background()

	ws, err := client.Worksheet(ctx, "Rating")
	require.NoError(t, err)

	require.NoError(t, ws.BatchUpdate(ctx, nil), "Nothing to write")
	assert.Empty(t, fake.values)

	err = ws.BatchUpdate(ctx, []CellUpdate{
		{Range: "B5", Values: [][]interface{}{{15}}},
		{Range: "F3", Values: [][]interface{}{{7}}},
	})
	require.NoError(t, err)

	require.Len(t, fake.values, 1, "One request per batch")
	req := fake.values[0]
	assert.Equal(t, "USER_ENTERED", req.ValueInputOption)
	require.Len(t, req.Data, 2)
	assert.Equal(t, "'Rating'!B5", req.Data[0].Range)
	assert.Equal(t, "'Rating'!F3", req.Data[1].Range)
	assert.EqualValues(t, 15, req.Data[0].Values[0][0])

	require.NoError(t, ws.Clear(ctx, "A3:B"))
	assert.Equal(t, []string{"'Rating'!A3:B"}, fake.cleared)
}

func TestWorksheet_Sort(t *testing.T) {
	fake := &fakeSheets{}
	client := setupClient(t, fake)
	ctx := context.Background()

	ws, err := client.Worksheet(ctx, "Rating")
	require.NoError(t, err)

	err = ws.Sort(ctx, "E3:G10", SortSpec{Column: 6, Descending: true}, SortSpec{Column: 5, Descending: true})
	require.NoError(t, err)

	require.Len(t, fake.requests, 1)
	sort := fake.requests[0].SortRange
	require.NotNil(t, sort)
	assert.Equal(t, int64(0), sort.Range.SheetId)
	assert.Equal(t, int64(2), sort.Range.StartRowIndex)
	assert.Equal(t, int64(10), sort.Range.EndRowIndex)
	assert.Equal(t, int64(4), sort.Range.StartColumnIndex)
	assert.Equal(t, int64(7), sort.Range.EndColumnIndex)
	require.Len(t, sort.SortSpecs, 2)
	assert.Equal(t, int64(6), sort.SortSpecs[0].DimensionIndex)
	assert.Equal(t, "DESCENDING", sort.SortSpecs[0].SortOrder)
	assert.Equal(t, int64(5), sort.SortSpecs[1].DimensionIndex)
}

func TestGameBoards_MarkResult(t *testing.T) {
	fake := &fakeSheets{
		columns: map[string][]interface{}{
			"'Day'!A:A": {"Key", "abc", "xyz"},
		},
	}
	client := setupClient(t, fake)
	ctx := context.Background()

	boards, err := NewGameBoards(client, map[models.TournamentType]string{models.Fast: "Day"}, "A", "F")
	require.NoError(t, err)

	// Second team won: G3 turns green
	require.NoError(t, boards.MarkResult(ctx, models.Fast, "xyz", models.OutcomeSecond))
	// Undecided: key cell A2 turns red
	require.NoError(t, boards.MarkResult(ctx, models.Fast, "abc", models.OutcomeUnknown))

	require.Len(t, fake.requests, 2)

	green := fake.requests[0].RepeatCell
	require.NotNil(t, green)
	assert.Equal(t, int64(11), green.Range.SheetId)
	assert.Equal(t, int64(6), green.Range.StartColumnIndex)
	assert.Equal(t, int64(2), green.Range.StartRowIndex)
	assert.Equal(t, 1.0, green.Cell.UserEnteredFormat.BackgroundColor.Green)
	assert.Equal(t, "userEnteredFormat.backgroundColor", green.Fields)

	red := fake.requests[1].RepeatCell
	require.NotNil(t, red)
	assert.Equal(t, int64(0), red.Range.StartColumnIndex)
	assert.Equal(t, int64(1), red.Range.StartRowIndex)
	assert.Equal(t, 1.0, red.Cell.UserEnteredFormat.BackgroundColor.Red)

	err = boards.MarkResult(ctx, models.Slow, "abc", models.OutcomeFirst)
	assert.ErrorIs(t, err, ErrNotFound, "No board configured for the type")

	err = boards.MarkResult(ctx, models.Fast, "missing", models.OutcomeFirst)
	assert.ErrorIs(t, err, ErrNotFound)
}
