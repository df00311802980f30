// Package pricing turns catalog base prices into condition-adjusted unit prices.
//
// It is the only place the condition multiplier table is applied; checkout and
// settlement both go through it.
package pricing

import "github.com/shopspring/decimal"

// UnitPriceCents returns base*multiplier(c) rounded half-up to whole cents.
func UnitPriceCents(baseCents int64, c Condition) int64 {
	return decimal.NewFromInt(baseCents).Mul(c.Multiplier()).Round(0).IntPart()
}

// LineTotalCents returns qty units of the given grade.
func LineTotalCents(baseCents int64, c Condition, qty int) int64 {
	return UnitPriceCents(baseCents, c) * int64(qty)
}
