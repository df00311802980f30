package checkout

import "errors"

var (
	// ErrValidation marks errors caused by the request itself. It is matched
	// with errors.Is; the wrapped cause names the offending field or SKU.
	ErrValidation = errors.New("invalid checkout request")

	ErrEmptyCart = errors.New("cart is empty")
	ErrBadEmail  = errors.New("invalid customer email")

	// ErrPaymentUnavailable is transient: the provider timed out or refused the session.
	ErrPaymentUnavailable = errors.New("payment provider unavailable")
)
