// Package scoring converts betting coefficients into tournament points.
package scoring

import (
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	// NoStake is awarded when no coefficient was published
	NoStake = 0
	// FavouriteScore is awarded below the first bucket
	FavouriteScore = 3
	// MaxScore is awarded from the ceiling coefficient upward
	MaxScore = 30
)

var (
	bucketFloor  = decimal.RequireFromString("1.26")
	bucketWidth  = decimal.RequireFromString("0.50")
	ceiling      = decimal.RequireFromString("9.76")
	firstBucket  = 5
	bucketsCount = 17
)

// ScoreFor returns the points for a correct prediction at the given coefficient.
// The coefficient uses a comma as the decimal separator.
func ScoreFor(coefficient string) int {
	raw := strings.TrimSpace(coefficient)
	if raw == "" {
		return NoStake
	}

	c, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil {
		log.Warn().Err(err).Str("coefficient", coefficient).Msg("Unparsable coefficient, no points")
		return NoStake
	}

	switch {
	case c.LessThan(bucketFloor):
		return FavouriteScore
	case c.GreaterThanOrEqual(ceiling):
		return MaxScore
	}

	bucket := int(c.Sub(bucketFloor).Div(bucketWidth).Floor().IntPart())
	return bucketScore(bucket)
}

// bucketScore maps a 0-based bucket index to points: 5, 7, 8, 10, 11, ...
func bucketScore(bucket int) int {
	if bucket >= bucketsCount {
		return MaxScore
	}
	score := firstBucket + 3*(bucket/2) + 2*(bucket%2)
	if score > MaxScore {
		return MaxScore
	}
	return score
}
