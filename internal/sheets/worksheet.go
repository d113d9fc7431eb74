package sheets

import (
	"context"
	"fmt"
	"strings"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"

	gsheets "google.golang.org/api/sheets/v4"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	majorDimensionColumns = "COLUMNS"
)

// CellUpdate writes Values starting at the A1 range of one worksheet
type CellUpdate struct {
	Range  string
	Values [][]interface{}
}

// SortSpec orders rows by an absolute 0-based sheet column
type SortSpec struct {
	Column     int
	Descending bool
}

// Color is an RGB background with components in [0, 1]
type Color struct {
	Red, Green, Blue float64
}

var (
	Green = Color{Green: 1}
	Red   = Color{Red: 1}
)

// Worksheet is one tab of a spreadsheet
type Worksheet struct {
	client *Client
	title  string
	id     int64
}

// Title returns the worksheet title
func (w *Worksheet) Title() string {
	return w.title
}

func (w *Worksheet) qualify(a1 string) string {
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(w.title, "'", "''"), a1)
}

// ColumnValues returns the displayed values of a whole column, starting at
// row 1. Trailing empty cells are not returned.
func (w *Worksheet) ColumnValues(ctx context.Context, col int) ([]string, error) {
	letter := layout.ColumnLetter(col)

	var resp *gsheets.ValueRange
	err := w.client.call("values_get", func() error {
		var err error
		resp, err = w.client.service.Spreadsheets.Values.
			Get(w.client.spreadsheetID, w.qualify(letter+":"+letter)).
			MajorDimension(majorDimensionColumns).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read column %s of %q: %w", letter, w.title, err)
	}

	if len(resp.Values) == 0 {
		return nil, nil
	}
	return toStrings(resp.Values[0]), nil
}

// Get returns the displayed values of an A1 range row by row.
// Rows shorter than the range are not padded.
func (w *Worksheet) Get(ctx context.Context, a1 string) ([][]string, error) {
	var resp *gsheets.ValueRange
	err := w.client.call("values_get", func() error {
		var err error
		resp, err = w.client.service.Spreadsheets.Values.
			Get(w.client.spreadsheetID, w.qualify(a1)).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s of %q: %w", a1, w.title, err)
	}

	rows := make([][]string, len(resp.Values))
	for i, row := range resp.Values {
		rows[i] = toStrings(row)
	}
	return rows, nil
}

// BatchUpdate writes all updates in a single request
func (w *Worksheet) BatchUpdate(ctx context.Context, updates []CellUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	data := make([]*gsheets.ValueRange, 0, len(updates))
	for _, u := range updates {
		data = append(data, &gsheets.ValueRange{
			Range:  w.qualify(u.Range),
			Values: u.Values,
		})
	}

	req := &gsheets.BatchUpdateValuesRequest{
		ValueInputOption: valueInputUserEntered,
		Data:             data,
	}

	err := w.client.call("values_batch_update", func() error {
		_, err := w.client.service.Spreadsheets.Values.
			BatchUpdate(w.client.spreadsheetID, req).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to update %d ranges of %q: %w", len(updates), w.title, err)
	}

	return nil
}

// Clear empties the values of an A1 range, keeping formatting
func (w *Worksheet) Clear(ctx context.Context, a1 string) error {
	err := w.client.call("values_clear", func() error {
		_, err := w.client.service.Spreadsheets.Values.
			Clear(w.client.spreadsheetID, w.qualify(a1), &gsheets.ClearValuesRequest{}).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to clear %s of %q: %w", a1, w.title, err)
	}
	return nil
}

// Sort orders the rows of an A1 range by the given columns, first spec first
func (w *Worksheet) Sort(ctx context.Context, a1 string, specs ...SortSpec) error {
	grid, err := w.gridRange(a1)
	if err != nil {
		return err
	}

	sortSpecs := make([]*gsheets.SortSpec, 0, len(specs))
	for _, s := range specs {
		order := "ASCENDING"
		if s.Descending {
			order = "DESCENDING"
		}
		sortSpecs = append(sortSpecs, &gsheets.SortSpec{
			DimensionIndex:  int64(s.Column),
			SortOrder:       order,
			ForceSendFields: []string{"DimensionIndex"},
		})
	}

	return w.batch(ctx, "sort_range", &gsheets.Request{
		SortRange: &gsheets.SortRangeRequest{Range: grid, SortSpecs: sortSpecs},
	})
}

// Paint sets the background color of an A1 range
func (w *Worksheet) Paint(ctx context.Context, a1 string, color Color) error {
	grid, err := w.gridRange(a1)
	if err != nil {
		return err
	}

	return w.batch(ctx, "repeat_cell", &gsheets.Request{
		RepeatCell: &gsheets.RepeatCellRequest{
			Range: grid,
			Cell: &gsheets.CellData{
				UserEnteredFormat: &gsheets.CellFormat{
					BackgroundColor: &gsheets.Color{
						Red:             color.Red,
						Green:           color.Green,
						Blue:            color.Blue,
						ForceSendFields: []string{"Red", "Green", "Blue"},
					},
				},
			},
			Fields: "userEnteredFormat.backgroundColor",
		},
	})
}

// FindRow returns the 1-based row of the first cell in col equal to value
func (w *Worksheet) FindRow(ctx context.Context, col int, value string) (int, error) {
	values, err := w.ColumnValues(ctx, col)
	if err != nil {
		return 0, err
	}
	for i, v := range values {
		if strings.TrimSpace(v) == value {
			return i + 1, nil
		}
	}
	return 0, fmt.Errorf("%q in column %s of %q: %w", value, layout.ColumnLetter(col), w.title, ErrNotFound)
}

func (w *Worksheet) batch(ctx context.Context, operation string, requests ...*gsheets.Request) error {
	req := &gsheets.BatchUpdateSpreadsheetRequest{Requests: requests}

	err := w.client.call(operation, func() error {
		_, err := w.client.service.Spreadsheets.
			BatchUpdate(w.client.spreadsheetID, req).
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to %s on %q: %w", strings.ReplaceAll(operation, "_", " "), w.title, err)
	}
	return nil
}

// gridRange converts an A1 range to the API's half-open grid coordinates.
// Open rows ("B:B") span the whole column.
func (w *Worksheet) gridRange(a1 string) (*gsheets.GridRange, error) {
	r, err := layout.ParseRange(a1)
	if err != nil {
		return nil, err
	}

	grid := &gsheets.GridRange{
		SheetId:          w.id,
		StartColumnIndex: int64(r.Start.Column),
		EndColumnIndex:   int64(r.End.Column + 1),
		ForceSendFields:  []string{"SheetId", "StartColumnIndex"},
	}
	if r.Start.Row > 0 {
		grid.StartRowIndex = int64(r.Start.Row - 1)
		grid.ForceSendFields = append(grid.ForceSendFields, "StartRowIndex")
	}
	if r.End.Row > 0 {
		grid.EndRowIndex = int64(r.End.Row)
	}
	return grid, nil
}

func toStrings(values []interface{}) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		out[i] = fmt.Sprint(v)
	}
	return out
}
