// Package catalog holds catalog entries and the stock arithmetic shared by
// checkout validation and settlement.
package catalog

import (
	"strings"

	"github.com/ariefcatur/card-market/internal/pricing"
)

// Entry is one sellable SKU.
type Entry struct {
	SKU            string `json:"-" yaml:"-"`
	Name           string `json:"name" yaml:"name"`
	BasePriceCents int64  `json:"base_price_cents" yaml:"base_price_cents"`
	Stock          Stock  `json:"stock" yaml:"stock"`
	Image          string `json:"image,omitempty" yaml:"image,omitempty"`
}

// Available is the stock on hand for the given grade.
func (e Entry) Available(c pricing.Condition) int { return e.Stock.For(c) }

// UnitPriceCents prices one unit of the entry in the given grade.
func (e Entry) UnitPriceCents(c pricing.Condition) int64 {
	return pricing.UnitPriceCents(e.BasePriceCents, c)
}

// Take returns a copy of the entry with qty units of grade c removed.
func (e Entry) Take(c pricing.Condition, qty int) (Entry, error) {
	avail := e.Available(c)
	if qty > avail {
		return e, &InsufficientStockError{
			SKU: e.SKU, Name: e.Name, Condition: c, Requested: qty, Available: avail,
		}
	}
	e.Stock = e.Stock.minus(c, qty)
	return e, nil
}

// Validate checks the fields the inventory collaborator is allowed to set.
func (e Entry) Validate() error {
	if strings.TrimSpace(e.SKU) == "" {
		return InvalidEntryError{Reason: "empty sku"}
	}
	if e.BasePriceCents < 0 {
		return InvalidEntryError{SKU: e.SKU, Reason: "negative base price"}
	}
	if err := e.Stock.validate(); err != nil {
		return InvalidEntryError{SKU: e.SKU, Reason: err.Error()}
	}
	return nil
}

// Demand is a quantity of one SKU in one grade.
type Demand struct {
	SKU       string
	Condition pricing.Condition
	Qty       int
}

// Deduct applies demands in order against entries and returns the updated
// copies of every entry it touched. entries itself is not modified. Demands for
// the same SKU accumulate, so two lines cannot jointly exceed stock.
func Deduct(entries map[string]Entry, demands []Demand) (map[string]Entry, error) {
	out := make(map[string]Entry, len(demands))
	for _, d := range demands {
		e, ok := out[d.SKU]
		if !ok {
			if e, ok = entries[d.SKU]; !ok {
				return nil, &UnknownSKUError{SKU: d.SKU}
			}
			e.SKU = d.SKU
		}
		next, err := e.Take(d.Condition, d.Qty)
		if err != nil {
			return nil, err
		}
		out[d.SKU] = next
	}
	return out, nil
}
