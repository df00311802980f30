package settlement

import (
	"fmt"

	"github.com/ariefcatur/card-market/internal/orders"
)

// OrderNotFoundError is an authenticated payment event whose order we cannot
// resolve. It is retried by the provider and needs an operator.
type OrderNotFoundError struct {
	OrderID string
	EventID string
}

func (e *OrderNotFoundError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("event %s carries no order id", e.EventID)
	}
	return fmt.Sprintf("order %s of event %s not found", e.OrderID, e.EventID)
}

func (e *OrderNotFoundError) Unwrap() error { return orders.ErrNotFound }
