package catalog

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/card-market/internal/pricing"
)

var ErrNegativeStock = errors.New("stock cannot be negative")

type UnknownSKUError struct {
	SKU string
}

func (e *UnknownSKUError) Error() string { return "unknown sku: " + e.SKU }

// InsufficientStockError reports a demand larger than what is on hand.
type InsufficientStockError struct {
	SKU       string
	Name      string
	Condition pricing.Condition
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.SKU
	}
	return fmt.Sprintf("insufficient stock for %s (%s, %s): requested %d, available %d",
		name, e.SKU, e.Condition, e.Requested, e.Available)
}

type InvalidEntryError struct {
	SKU    string
	Reason string
}

func (e InvalidEntryError) Error() string {
	if e.SKU == "" {
		return "invalid catalog entry: " + e.Reason
	}
	return fmt.Sprintf("invalid catalog entry %s: %s", e.SKU, e.Reason)
}
