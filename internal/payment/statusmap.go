package payment

import "github.com/noah-isme/backend-pay/internal/store"

// Transition decides whether an incoming provider status may replace the
// current one. Settlement is one way: PAID only moves to REFUNDED, REFUNDED
// is terminal, and a refund is only honored for a payment that was paid.
// Out-of-order callbacks (a late PENDING after PAID) are ignored.
func Transition(current, incoming store.Status) (store.Status, bool) {
	if incoming == "" || incoming == current {
		return current, false
	}
	switch current {
	case store.StatusPaid:
		if incoming == store.StatusRefunded {
			return store.StatusRefunded, true
		}
		return current, false
	case store.StatusRefunded:
		return current, false
	}
	if incoming == store.StatusRefunded {
		return current, false
	}
	return incoming, true
}
