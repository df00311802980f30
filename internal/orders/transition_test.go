package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/ariefcatur/card-market/internal/pricing"
)

func pendingOrder() Order {
	return Order{
		ID:            "o-1",
		Status:        StatusPending,
		Items:         []Item{{SKU: "X", Qty: 2, Condition: pricing.NearMint}},
		SubtotalCents: 1000,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestApplyPaid(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	next, changed, err := pendingOrder().Apply(Paid{At: at, CustomerEmail: " buyer@example.com ", SessionID: "cs_1"})
	if err != nil || !changed {
		t.Fatalf("apply: changed=%v err=%v", changed, err)
	}
	if next.Status != StatusPaid || next.PaidAt == nil || !next.PaidAt.Equal(at) {
		t.Fatalf("unexpected order %+v", next)
	}
	if next.CustomerEmail != "buyer@example.com" || next.PaymentSessionID != "cs_1" {
		t.Fatalf("email/session not recorded: %+v", next)
	}
}

func TestApplyPaidKeepsExistingEmail(t *testing.T) {
	o := pendingOrder()
	o.CustomerEmail = "first@example.com"
	next, _, err := o.Apply(Paid{At: time.Now(), CustomerEmail: "other@example.com"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if next.CustomerEmail != "first@example.com" {
		t.Fatalf("email overwritten: %s", next.CustomerEmail)
	}
}

func TestApplyPaidIsAbsorbing(t *testing.T) {
	first, _, _ := pendingOrder().Apply(Paid{At: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)})
	again, changed, err := first.Apply(Paid{At: time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), CustomerEmail: "late@example.com"})
	if err != nil || changed {
		t.Fatalf("replay: changed=%v err=%v", changed, err)
	}
	if !again.PaidAt.Equal(*first.PaidAt) || again.CustomerEmail != first.CustomerEmail || again.SubtotalCents != first.SubtotalCents {
		t.Fatalf("replay mutated order: %+v", again)
	}

	if _, _, err := first.Apply(Failed{At: time.Now()}); !errors.Is(err, ErrClosed) {
		t.Fatalf("paid -> failed should be closed, got %v", err)
	}
}

func TestApplyFailed(t *testing.T) {
	failed, changed, err := pendingOrder().Apply(Failed{At: time.Now(), Reason: "expired"})
	if err != nil || !changed || failed.Status != StatusFailed || failed.FailedAt == nil {
		t.Fatalf("fail: %+v changed=%v err=%v", failed, changed, err)
	}
	if _, _, err := failed.Apply(Paid{At: time.Now()}); !errors.Is(err, ErrClosed) {
		t.Fatalf("failed -> paid should be closed, got %v", err)
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	o := pendingOrder()
	c := o.Clone()
	c.Items[0].Qty = 99
	if o.Items[0].Qty != 2 {
		t.Fatalf("clone aliases items")
	}
}

func TestTerminal(t *testing.T) {
	if StatusPending.Terminal() || !StatusPaid.Terminal() || !StatusFailed.Terminal() {
		t.Fatalf("unexpected terminal flags")
	}
}
