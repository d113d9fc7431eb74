// Package layout addresses the rating table: one block of columns per
// tournament type, laid out left to right and separated by a blank column.
package layout

import (
	"fmt"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
)

// Field is a column within a tournament type block
type Field int

const (
	FieldNickname Field = iota
	FieldScore
	FieldTournament

	fieldCount
)

// FirstDataRow is the first rating row below the two header rows
const FirstDataRow = 3

const separatorWidth = 1

func (f Field) String() string {
	switch f {
	case FieldNickname:
		return "nickname"
	case FieldScore:
		return "score"
	case FieldTournament:
		return "tournament"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

// Layout maps (field, tournament type) to rating table columns
type Layout struct {
	order []models.TournamentType
	index map[models.TournamentType]int
}

// New builds a layout whose blocks follow the given type order
func New(order ...models.TournamentType) (*Layout, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("layout needs at least one tournament type")
	}

	l := &Layout{index: make(map[models.TournamentType]int, len(order))}
	for _, tt := range order {
		if _, err := models.ParseTournamentType(string(tt)); err != nil {
			return nil, err
		}
		if _, dup := l.index[tt]; dup {
			return nil, fmt.Errorf("duplicate tournament type %q in layout", tt)
		}
		l.index[tt] = len(l.order)
		l.order = append(l.order, tt)
	}
	return l, nil
}

// Types returns the configured block order
func (l *Layout) Types() []models.TournamentType {
	return append([]models.TournamentType(nil), l.order...)
}

// Has reports whether the type has a block in the table
func (l *Layout) Has(tt models.TournamentType) bool {
	_, ok := l.index[tt]
	return ok
}

// ColumnIndex returns the 0-based sheet column of a field in a type's block.
// Asking for a type outside the layout is a programming error.
func (l *Layout) ColumnIndex(f Field, tt models.TournamentType) int {
	block, ok := l.index[tt]
	if !ok {
		panic(fmt.Sprintf("layout: tournament type %q has no rating block", tt))
	}
	if f < 0 || f >= fieldCount {
		panic(fmt.Sprintf("layout: unknown field %d", int(f)))
	}
	return int(f) + block*(int(fieldCount)+separatorWidth)
}

// Column returns the column letter of a field in a type's block
func (l *Layout) Column(f Field, tt models.TournamentType) string {
	return ColumnLetter(l.ColumnIndex(f, tt))
}

// Cell returns the A1 address of a field on a row
func (l *Layout) Cell(f Field, tt models.TournamentType, row int) string {
	return fmt.Sprintf("%s%d", l.Column(f, tt), row)
}

// BlockRange returns the A1 range spanning a type's block between two rows
func (l *Layout) BlockRange(tt models.TournamentType, fromRow, toRow int) string {
	return fmt.Sprintf("%s%d:%s%d",
		l.Column(FieldNickname, tt), fromRow,
		l.Column(FieldTournament, tt), toRow,
	)
}
