package models

import (
	"fmt"
	"strings"
)

// TournamentType is one of the fixed game categories tracked independently
type TournamentType string

const (
	Fast TournamentType = "FAST"
	// Standard keeps the spelling the collector stores in the database
	Standard TournamentType = "STANDART"
	Slow     TournamentType = "SLOW"
)

// TournamentTypes lists every known type in rating table block order
var TournamentTypes = []TournamentType{Fast, Standard, Slow}

// ParseTournamentType validates a tag against the closed set of types
func ParseTournamentType(s string) (TournamentType, error) {
	tt := TournamentType(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range TournamentTypes {
		if tt == known {
			return tt, nil
		}
	}
	return "", fmt.Errorf("unknown tournament type %q", s)
}

// ParseTournamentTypes parses a list of tags, rejecting unknown and duplicate ones
func ParseTournamentTypes(tags []string) ([]TournamentType, error) {
	seen := make(map[TournamentType]bool, len(tags))
	types := make([]TournamentType, 0, len(tags))
	for _, tag := range tags {
		tt, err := ParseTournamentType(tag)
		if err != nil {
			return nil, err
		}
		if seen[tt] {
			return nil, fmt.Errorf("duplicate tournament type %q", tt)
		}
		seen[tt] = true
		types = append(types, tt)
	}
	return types, nil
}

func (t TournamentType) String() string {
	return string(t)
}
