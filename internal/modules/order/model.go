// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"presto/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusReady     Status = "ready"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentWallet PaymentMethod = "wallet"
)

// DeliveryStatus tracks the hand-off protocol while the order is ready.
type DeliveryStatus string

const (
	DeliveryNone       DeliveryStatus = "none"
	DeliverymanArrived DeliveryStatus = "deliveryman_arrived"
	OrderHandedOver    DeliveryStatus = "order_handed_over"
	OrderReceived      DeliveryStatus = "order_received"
	PaymentMade        DeliveryStatus = "payment_made"
	PaymentConfirmed   DeliveryStatus = "payment_confirmed"
)

type Order struct {
	ID             types.ID
	CustomerID     types.ID
	VendorID       types.ID
	DeliverymanID  *types.ID
	Status         Status
	StatusVersion  int
	DeliveryStatus DeliveryStatus
	PaymentMethod  PaymentMethod
	TotalPrice     types.Money
	Address        string
	CreatedAt      time.Time
	ConfirmedAt    *time.Time
	ReadyAt        *time.Time
	ShippedAt      *time.Time
	DeliveredAt    *time.Time
}

// Item is a denormalized price snapshot taken at checkout; it is never
// re-read from the catalog.
type Item struct {
	OrderID   types.ID
	ProductID types.ID
	Quantity  int
	Price     types.Money
}

// Event is an audit row appended on every successful transition.
type Event struct {
	ID        int64
	OrderID   types.ID
	FromState string
	ToState   string
	ActorType string
	ActorID   *types.ID
	CreatedAt time.Time
}

// AllowedTransitions represents the order lifecycle as a directed graph.
// Cancellation is only reachable from pending; delivered and cancelled are
// terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusReady},
	StatusReady:     {StatusShipped},
	StatusShipped:   {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// Summary is the claimable-order announcement broadcast to the captain pool
// when an order becomes ready.
type Summary struct {
	OrderID       types.ID    `json:"orderId"`
	VendorID      types.ID    `json:"vendorId"`
	Address       string      `json:"address"`
	PaymentMethod string      `json:"paymentMethod"`
	TotalPrice    types.Money `json:"totalPrice"`
}

func (o *Order) Summary() Summary {
	return Summary{
		OrderID:       o.ID,
		VendorID:      o.VendorID,
		Address:       o.Address,
		PaymentMethod: string(o.PaymentMethod),
		TotalPrice:    o.TotalPrice,
	}
}
