// README: Delivery hand-off sub-machine: atomic claim, then ordered progress.
package delivery

import (
	"context"
	"errors"
	"time"

	"presto/internal/modules/order"
	"presto/internal/realtime"
	"presto/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrUnauthorized      = errors.New("deliveryman does not own this order")
	ErrInvalidState      = errors.New("order not claimable in current state")
	ErrInvalidTransition = errors.New("invalid delivery status transition")
	ErrConflict          = errors.New("delivery state conflict")
)

// Orders reads the order record the sub-machine validates against.
type Orders interface {
	Get(ctx context.Context, id types.ID) (*order.Order, error)
}

// Wallet credits the deliveryman when a cash collection is confirmed.
type Wallet interface {
	Credit(ctx context.Context, userID types.ID, amount types.Money) error
}

type Notifier interface {
	Notify(id types.ID, role types.Role, ev realtime.Event) bool
	Broadcast(role types.Role, ev realtime.Event) int
}

// Storage is the conditional-update boundary for the claim and progress
// writes. The Postgres Store implements it.
type Storage interface {
	// Claim sets deliveryman_id only if the order is ready and unclaimed.
	Claim(ctx context.Context, orderID, deliverymanID types.ID) (bool, error)
	// Advance moves delivery_status from→to for the owning deliveryman while
	// the order is ready; when terminal, the order status becomes shipped in
	// the same statement.
	Advance(ctx context.Context, orderID, deliverymanID types.ID, from, to order.DeliveryStatus, terminal bool) (bool, error)
	AppendEvent(ctx context.Context, e *order.Event) error
}

type Service struct {
	store    Storage
	orders   Orders
	wallet   Wallet
	notifier Notifier
}

func NewService(store Storage, orders Orders, wallet Wallet, notifier Notifier) *Service {
	return &Service{store: store, orders: orders, wallet: wallet, notifier: notifier}
}

type AcceptCommand struct {
	OrderID       types.ID
	DeliverymanID types.ID
	Name          string
	Phone         string
	Vehicle       string
}

type AdvanceCommand struct {
	OrderID       types.ID
	DeliverymanID types.ID
	To            order.DeliveryStatus
}

// Accept is the claim phase. The write is a compare-and-set ("set only if
// null"), so exactly one of any number of simultaneous callers wins.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) error {
	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if o.Status != order.StatusReady || o.DeliverymanID != nil {
		return ErrInvalidState
	}
	ok, err := s.store.Claim(ctx, o.ID, cmd.DeliverymanID)
	if err != nil {
		return err
	}
	if !ok {
		// another deliveryman claimed it first
		return ErrInvalidState
	}
	_ = s.store.AppendEvent(ctx, &order.Event{
		OrderID:   o.ID,
		FromState: string(order.DeliveryNone),
		ToState:   "claimed",
		ActorType: "deliveryman",
		ActorID:   &cmd.DeliverymanID,
		CreatedAt: time.Now(),
	})

	dm := Deliveryman{ID: string(cmd.DeliverymanID), Name: cmd.Name, Phone: cmd.Phone, Vehicle: cmd.Vehicle}
	if s.notifier != nil {
		// hand-off has not happened yet: status is still ready, the customer
		// just learns who is coming.
		s.notifier.Notify(o.CustomerID, types.RoleCustomer, realtime.Event{
			Name: realtime.EventOrderStatusChanged,
			Data: map[string]any{"orderId": o.ID, "status": o.Status, "deliveryman": dm},
		})
		s.notifier.Notify(o.VendorID, types.RoleVendor, realtime.Event{
			Name: realtime.EventOrderAccepted,
			Data: map[string]any{"orderId": o.ID, "deliveryman": dm},
		})
	}
	return nil
}

// Advance is the progress phase. The requested status must sit strictly
// ahead of the current one within the payment-method sequence; reaching the
// terminal step ships the order in the same conditional update.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) error {
	o, err := s.orders.Get(ctx, cmd.OrderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if o.DeliverymanID == nil || *o.DeliverymanID != cmd.DeliverymanID {
		return ErrUnauthorized
	}
	if o.Status != order.StatusReady {
		return ErrInvalidState
	}

	seq := sequenceFor(o.PaymentMethod)
	ti := indexIn(seq, cmd.To)
	if ti < 0 {
		// includes payment_made/payment_confirmed on non-cash orders
		return ErrInvalidTransition
	}
	if ti <= indexIn(seq, o.DeliveryStatus) {
		return ErrInvalidTransition
	}
	if cmd.To == order.OrderReceived && o.DeliveryStatus != order.OrderHandedOver {
		return ErrInvalidTransition
	}

	terminal := cmd.To == terminalOf(seq)
	ok, err := s.store.Advance(ctx, o.ID, cmd.DeliverymanID, o.DeliveryStatus, cmd.To, terminal)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &order.Event{
		OrderID:   o.ID,
		FromState: string(o.DeliveryStatus),
		ToState:   string(cmd.To),
		ActorType: "deliveryman",
		ActorID:   &cmd.DeliverymanID,
		CreatedAt: time.Now(),
	})

	if terminal && o.PaymentMethod == order.PaymentCash && s.wallet != nil {
		// cash collected in person lands on the deliveryman's ledger
		if err := s.wallet.Credit(ctx, cmd.DeliverymanID, o.TotalPrice); err != nil {
			return err
		}
	}

	status := o.Status
	if terminal {
		status = order.StatusShipped
	}
	if s.notifier != nil {
		payload := map[string]any{"orderId": o.ID, "status": status, "deliveryStatus": cmd.To}
		s.notifier.Notify(o.CustomerID, types.RoleCustomer, realtime.Event{
			Name: realtime.EventOrderStatusChanged, Data: payload,
		})
		s.notifier.Notify(o.VendorID, types.RoleVendor, realtime.Event{
			Name: realtime.EventOrderStatusChanged, Data: payload,
		})
	}
	return nil
}
