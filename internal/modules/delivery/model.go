// README: Hand-off protocol sequences, indexed by payment method.
package delivery

import "presto/internal/modules/order"

// The progress phase is an ordered sequence; cash orders carry two extra
// payment steps after the goods change hands.
var (
	nonCashSequence = []order.DeliveryStatus{
		order.DeliverymanArrived,
		order.OrderHandedOver,
		order.OrderReceived,
	}
	cashSequence = []order.DeliveryStatus{
		order.DeliverymanArrived,
		order.OrderHandedOver,
		order.OrderReceived,
		order.PaymentMade,
		order.PaymentConfirmed,
	}
)

func sequenceFor(pm order.PaymentMethod) []order.DeliveryStatus {
	if pm == order.PaymentCash {
		return cashSequence
	}
	return nonCashSequence
}

// indexIn returns the position of st in seq, or -1. DeliveryNone indexes
// before the first step.
func indexIn(seq []order.DeliveryStatus, st order.DeliveryStatus) int {
	if st == order.DeliveryNone {
		return -1
	}
	for i, s := range seq {
		if s == st {
			return i
		}
	}
	return -1
}

func terminalOf(seq []order.DeliveryStatus) order.DeliveryStatus {
	return seq[len(seq)-1]
}

// Deliveryman is the contact summary pushed to the customer and vendor when
// an order is claimed. Profile storage is external; the summary travels with
// the accept request.
type Deliveryman struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Vehicle string `json:"vehicle,omitempty"`
}
