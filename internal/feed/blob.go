package feed

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Den1sproger/tournament-management-tg-bot/internal/models"
)

// Feed keys the monitor reads
const (
	KeyStatus     = "DA"
	KeyFirstScore = "DE"
	KeyLastScore  = "DF"
)

const (
	recordSeparator = "¬"
	valueSeparator  = "÷"
	blockSeparator  = "~"
)

// Blob is the key/value data the feed returns for a game
type Blob map[string]string

// ParseBlob splits a "KEY÷value¬KEY÷value¬~" body into a Blob.
// Later duplicates of a key win.
func ParseBlob(body string) Blob {
	blob := make(Blob)
	body = strings.ReplaceAll(body, blockSeparator, recordSeparator)
	for _, item := range strings.Split(body, recordSeparator) {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, value, _ := strings.Cut(item, valueSeparator)
		blob[key] = value
	}
	return blob
}

// Status returns the lifecycle code under the DA key
func (b Blob) Status() (models.Status, error) {
	raw, ok := b[KeyStatus]
	if !ok {
		return models.StatusUnknown, fmt.Errorf("feed blob has no %s key", KeyStatus)
	}
	code, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return models.StatusUnknown, fmt.Errorf("invalid status %q: %w", raw, err)
	}
	status := models.Status(code)
	if !status.Valid() {
		return models.StatusUnknown, fmt.Errorf("unexpected status code %d", code)
	}
	return status, nil
}

// FinalScore returns the raw DE/DF score pair; ok is false when either is missing
func (b Blob) FinalScore() (first, second string, ok bool) {
	first, okFirst := b[KeyFirstScore]
	second, okSecond := b[KeyLastScore]
	return first, second, okFirst && okSecond
}
