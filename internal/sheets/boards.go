package sheets

import (
	"context"
	"fmt"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/layout"
	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
)

// GameBoards highlights finished games on the per-type worksheets the
// collector publishes: the winning coefficient turns green, and the game key
// turns red when the winner could not be decided.
type GameBoards struct {
	client     *Client
	worksheets map[models.TournamentType]string
	keyCol     int
	coeffCol   int
}

// NewGameBoards maps each tournament type to its worksheet title. Column
// arguments are A1 letters; the three coefficients sit side by side starting
// at firstCoeffCol in outcome order.
func NewGameBoards(client *Client, worksheets map[models.TournamentType]string, keyCol, firstCoeffCol string) (*GameBoards, error) {
	key, err := layout.ParseColumn(keyCol)
	if err != nil {
		return nil, fmt.Errorf("game key column: %w", err)
	}
	coeff, err := layout.ParseColumn(firstCoeffCol)
	if err != nil {
		return nil, fmt.Errorf("first coefficient column: %w", err)
	}

	return &GameBoards{
		client:     client,
		worksheets: worksheets,
		keyCol:     key,
		coeffCol:   coeff,
	}, nil
}

// MarkResult paints the game's row on its type's board
func (b *GameBoards) MarkResult(ctx context.Context, tt models.TournamentType, gameKey string, outcome models.Outcome) error {
	title, ok := b.worksheets[tt]
	if !ok {
		return fmt.Errorf("no game board for %s: %w", tt, ErrNotFound)
	}

	ws, err := b.client.Worksheet(ctx, title)
	if err != nil {
		return err
	}

	row, err := ws.FindRow(ctx, b.keyCol, gameKey)
	if err != nil {
		return err
	}

	if !outcome.Decided() {
		return ws.Paint(ctx, cell(b.keyCol, row), Red)
	}
	return ws.Paint(ctx, cell(b.coeffCol+int(outcome)-1, row), Green)
}

func cell(col, row int) string {
	return fmt.Sprintf("%s%d", layout.ColumnLetter(col), row)
}
