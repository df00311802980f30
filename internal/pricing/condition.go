package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Condition is the physical grade of a card.
type Condition string

const (
	NearMint         Condition = "Near Mint"
	LightlyPlayed    Condition = "Lightly Played"
	ModeratelyPlayed Condition = "Moderately Played"
	HeavilyPlayed    Condition = "Heavily Played"
)

// Conditions lists every grade, best first.
var Conditions = []Condition{NearMint, LightlyPlayed, ModeratelyPlayed, HeavilyPlayed}

var codes = map[Condition]string{
	NearMint:         "NM",
	LightlyPlayed:    "LP",
	ModeratelyPlayed: "MP",
	HeavilyPlayed:    "HP",
}

var multipliers = map[Condition]decimal.Decimal{
	NearMint:         decimal.NewFromInt(1),
	LightlyPlayed:    decimal.RequireFromString("0.9"),
	ModeratelyPlayed: decimal.RequireFromString("0.8"),
	HeavilyPlayed:    decimal.RequireFromString("0.65"),
}

// ParseCondition maps a free-form string onto a known grade. Full names and
// their short codes (NM, LP, MP, HP) are matched case-insensitively; anything
// else is Near Mint.
func ParseCondition(s string) Condition {
	s = strings.TrimSpace(s)
	for _, c := range Conditions {
		if strings.EqualFold(s, string(c)) || strings.EqualFold(s, codes[c]) {
			return c
		}
	}
	return NearMint
}

// Code returns the short stock key of the grade ("NM", "LP", ...).
func (c Condition) Code() string {
	if code, ok := codes[c]; ok {
		return code
	}
	return codes[NearMint]
}

// Multiplier returns the price factor applied to the Near Mint base price.
func (c Condition) Multiplier() decimal.Decimal {
	if m, ok := multipliers[c]; ok {
		return m
	}
	return multipliers[NearMint]
}

func (c Condition) Valid() bool {
	_, ok := multipliers[c]
	return ok
}
