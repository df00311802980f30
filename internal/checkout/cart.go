package checkout

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/ariefcatur/card-market/internal/orders"
	"github.com/ariefcatur/card-market/internal/pricing"
)

const (
	MinQty = 1
	MaxQty = 999
)

// Quantity decodes the loosely typed qty a browser cart sends: numbers or
// numeric strings, fractions truncated toward zero. Anything unreadable
// decodes as 1. It never fails, so one bad line cannot reject the body.
type Quantity int

func (q *Quantity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*q = MinQty
			return nil
		}
		b = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*q = MinQty
		return nil
	}
	*q = Quantity(clampQty(math.Trunc(f)))
	return nil
}

func clampQty(f float64) int {
	switch {
	case f < MinQty:
		return MinQty
	case f > MaxQty:
		return MaxQty
	}
	return int(f)
}

// CartLine is one line as submitted by the client. Client-side prices are
// not part of it and are dropped on decode.
type CartLine struct {
	SKU       string   `json:"sku"`
	Qty       Quantity `json:"qty"`
	Condition string   `json:"condition"`
}

// Normalize trims SKUs, drops lines without one, bounds quantities and maps
// conditions onto the pricing grades.
func Normalize(lines []CartLine) []orders.Item {
	out := make([]orders.Item, 0, len(lines))
	for _, l := range lines {
		sku := strings.TrimSpace(l.SKU)
		if sku == "" {
			continue
		}
		out = append(out, orders.Item{
			SKU:       sku,
			Qty:       clampQty(float64(l.Qty)),
			Condition: pricing.ParseCondition(l.Condition),
		})
	}
	return out
}
