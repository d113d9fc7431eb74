package layout

import (
	"fmt"
	"strconv"
	"strings"
)

// ColumnLetter converts a 0-based column index to letters: 0 -> A, 26 -> AA
func ColumnLetter(index int) string {
	if index < 0 {
		panic(fmt.Sprintf("layout: negative column index %d", index))
	}
	var b []byte
	for n := index + 1; n > 0; n = (n - 1) / 26 {
		b = append([]byte{byte('A' + (n-1)%26)}, b...)
	}
	return string(b)
}

// ParseColumn converts column letters to a 0-based index
func ParseColumn(letters string) (int, error) {
	letters = strings.ToUpper(strings.TrimSpace(letters))
	if letters == "" {
		return 0, fmt.Errorf("empty column")
	}
	n := 0
	for _, r := range letters {
		if r < 'A' || r > 'Z' {
			return 0, fmt.Errorf("invalid column %q", letters)
		}
		n = n*26 + int(r-'A'+1)
	}
	return n - 1, nil
}

// CellRef is a parsed A1 cell; Row is 1-based and 0 when the row is open
type CellRef struct {
	Column int
	Row    int
}

// ParseCell parses "B5" or a bare column "B"
func ParseCell(a1 string) (CellRef, error) {
	a1 = strings.TrimSpace(a1)
	i := 0
	for i < len(a1) && (a1[i] < '0' || a1[i] > '9') {
		i++
	}
	col, err := ParseColumn(a1[:i])
	if err != nil {
		return CellRef{}, fmt.Errorf("invalid cell %q: %w", a1, err)
	}
	ref := CellRef{Column: col}
	if i < len(a1) {
		row, err := strconv.Atoi(a1[i:])
		if err != nil || row < 1 {
			return CellRef{}, fmt.Errorf("invalid cell %q: bad row", a1)
		}
		ref.Row = row
	}
	return ref, nil
}

// Range is a parsed A1 range with inclusive corners
type Range struct {
	Start CellRef
	End   CellRef
}

// ParseRange parses "A3:C10", "A:A" or a single cell "B5"
func ParseRange(a1 string) (Range, error) {
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		a1 = a1[i+1:]
	}
	from, to, found := strings.Cut(a1, ":")
	start, err := ParseCell(from)
	if err != nil {
		return Range{}, err
	}
	if !found {
		return Range{Start: start, End: start}, nil
	}
	end, err := ParseCell(to)
	if err != nil {
		return Range{}, err
	}
	if end.Column < start.Column || (end.Row != 0 && end.Row < start.Row) {
		return Range{}, fmt.Errorf("invalid range %q: end before start", a1)
	}
	return Range{Start: start, End: end}, nil
}
