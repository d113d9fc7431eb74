package models

// Coefficients holds the published odds of a game in outcome order:
// first team wins, second team wins, draw. Values keep the collector's
// locale formatting ("1,30"); an empty value means no stake was offered.
type Coefficients [3]string

// For returns the coefficient of the given decided outcome
func (c Coefficients) For(o Outcome) string {
	if !o.Decided() {
		return ""
	}
	return c[int(o)-1]
}
