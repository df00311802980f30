package orders

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrClosed is returned when a payment arrives for an order that already failed.
	ErrClosed = errors.New("order is closed")
)

// Event is an input to the order state machine.
type Event interface {
	target() Status
}

// Paid records a confirmed payment.
type Paid struct {
	At            time.Time
	CustomerEmail string
	SessionID     string
}

// Failed records an abort or expiry of a pending order.
type Failed struct {
	At     time.Time
	Reason string
}

func (Paid) target() Status   { return StatusPaid }
func (Failed) target() Status { return StatusFailed }

// Apply runs ev against o and returns the next order state. changed is false
// when ev is a replay of the transition that already happened, in which case
// the order is returned untouched. Any other move out of a terminal state is
// ErrClosed.
func (o Order) Apply(ev Event) (next Order, changed bool, err error) {
	to := ev.target()
	if o.Status == to {
		return o, false, nil
	}
	if !CanTransition(o.Status, to) {
		return o, false, fmt.Errorf("%w: %s order %s cannot become %s", ErrClosed, o.Status, o.ID, to)
	}

	next = o.Clone()
	next.Status = to
	switch e := ev.(type) {
	case Paid:
		at := e.At.UTC()
		next.PaidAt = &at
		if next.CustomerEmail == "" {
			next.CustomerEmail = strings.TrimSpace(e.CustomerEmail)
		}
		if next.PaymentSessionID == "" {
			next.PaymentSessionID = e.SessionID
		}
	case Failed:
		at := e.At.UTC()
		next.FailedAt = &at
	}
	return next, true, nil
}
