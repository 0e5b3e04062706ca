// README: Order service implements the lifecycle state machine and its fan-out.
package order

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"presto/internal/realtime"
	"presto/internal/types"
)

var (
	ErrNotFound          = errors.New("order not found")
	ErrUnauthorized      = errors.New("actor does not own this order")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrConflict          = errors.New("order state conflict")
	ErrBadRequest        = errors.New("bad request")
)

// Wallet is the black-box ledger capability. Checkout debits it for
// wallet-paid orders; the handoff machine credits it for cash collections.
type Wallet interface {
	Debit(ctx context.Context, userID types.ID, amount types.Money) error
}

// Notifier is the dispatcher surface the state machine fans out through.
// Delivery is at-most-once; return values are informational only.
type Notifier interface {
	Notify(id types.ID, role types.Role, ev realtime.Event) bool
	Broadcast(role types.Role, ev realtime.Event) int
}

// Storage is the persistence boundary. The Postgres Store implements it;
// tests use an in-memory fake with the same conditional-update semantics.
type Storage interface {
	Create(ctx context.Context, o *Order, items []Item) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	// UpdateStatus applies status from→to only if the row still matches
	// (from, version); it reports whether a row was updated.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error)
	// DeletePending removes the order and its items only while pending.
	DeletePending(ctx context.Context, id types.ID) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
}

type Service struct {
	store    Storage
	wallet   Wallet
	notifier Notifier
}

func NewService(store Storage, wallet Wallet, notifier Notifier) *Service {
	return &Service{store: store, wallet: wallet, notifier: notifier}
}

type ItemInput struct {
	ProductID types.ID
	Quantity  int
	Price     types.Money
}

type CheckoutCommand struct {
	CustomerID    types.ID
	VendorID      types.ID
	Address       string
	PaymentMethod PaymentMethod
	Items         []ItemInput
}

type TransitionCommand struct {
	OrderID  types.ID
	VendorID types.ID
	To       Status
}

type CancelCommand struct {
	OrderID    types.ID
	CustomerID types.ID
}

// Checkout creates a pending order with an immutable price snapshot. Wallet
// payments are debited up front; a failed debit fails the checkout.
func (s *Service) Checkout(ctx context.Context, cmd CheckoutCommand) (types.ID, error) {
	if cmd.CustomerID == "" || cmd.VendorID == "" || len(cmd.Items) == 0 {
		return "", ErrBadRequest
	}
	switch cmd.PaymentMethod {
	case PaymentCash, PaymentCard, PaymentWallet:
	default:
		return "", ErrBadRequest
	}

	total := types.Money{Currency: "EGP"}
	items := make([]Item, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		if in.Quantity <= 0 || in.Price.Amount < 0 {
			return "", ErrBadRequest
		}
		total.Amount += in.Price.Amount * int64(in.Quantity)
		items = append(items, Item{ProductID: in.ProductID, Quantity: in.Quantity, Price: in.Price})
	}

	if cmd.PaymentMethod == PaymentWallet && s.wallet != nil {
		if err := s.wallet.Debit(ctx, cmd.CustomerID, total); err != nil {
			return "", err
		}
	}

	id := newID()
	o := &Order{
		ID:             id,
		CustomerID:     cmd.CustomerID,
		VendorID:       cmd.VendorID,
		Status:         StatusPending,
		DeliveryStatus: DeliveryNone,
		PaymentMethod:  cmd.PaymentMethod,
		TotalPrice:     total,
		Address:        cmd.Address,
		CreatedAt:      time.Now(),
	}
	for i := range items {
		items[i].OrderID = id
	}
	if err := s.store.Create(ctx, o, items); err != nil {
		return "", err
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:   id,
		FromState: "",
		ToState:   string(StatusPending),
		ActorType: "customer",
		ActorID:   &cmd.CustomerID,
		CreatedAt: time.Now(),
	})

	if s.notifier != nil {
		s.notifier.Notify(o.CustomerID, types.RoleCustomer, realtime.Event{
			Name: realtime.EventNewOrderCreated,
			Data: map[string]any{"orderId": id, "customerId": o.CustomerID, "status": o.Status},
		})
		s.notifier.Notify(o.VendorID, types.RoleVendor, realtime.Event{
			Name: realtime.EventNewOrderForVendor,
			Data: map[string]any{"orderId": id, "vendorId": o.VendorID, "customerId": o.CustomerID, "status": o.Status},
		})
	}
	return id, nil
}

// Transition applies a vendor-driven status change. On ready, the claimable
// order is additionally broadcast to the captain pool, because the
// deliveryman is not yet known at that point.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.VendorID != cmd.VendorID {
		return ErrUnauthorized
	}
	if !CanTransition(o.Status, cmd.To) {
		return ErrInvalidTransition
	}
	ok, err := s.store.UpdateStatus(ctx, o.ID, o.Status, cmd.To, o.StatusVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	_ = s.store.AppendEvent(ctx, &Event{
		OrderID:   o.ID,
		FromState: string(o.Status),
		ToState:   string(cmd.To),
		ActorType: "vendor",
		ActorID:   &cmd.VendorID,
		CreatedAt: time.Now(),
	})

	if s.notifier != nil {
		s.notifier.Notify(o.CustomerID, types.RoleCustomer, realtime.Event{
			Name: realtime.EventOrderStatusChanged,
			Data: map[string]any{"orderId": o.ID, "status": cmd.To},
		})
		if cmd.To == StatusReady {
			s.notifier.Broadcast(types.RoleCaptain, realtime.Event{
				Name: realtime.EventDeliverableOrder,
				Data: o.Summary(),
			})
		}
	}
	return nil
}

// Cancel removes a pending order and its items. Past pending, the order is
// immutable from the customer side.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) error {
	o, err := s.store.Get(ctx, cmd.OrderID)
	if err != nil {
		return err
	}
	if o.CustomerID != cmd.CustomerID {
		return ErrUnauthorized
	}
	if o.Status != StatusPending {
		return ErrInvalidTransition
	}
	ok, err := s.store.DeletePending(ctx, o.ID)
	if err != nil {
		return err
	}
	if !ok {
		// lost the race against a vendor confirmation
		return ErrInvalidTransition
	}
	if s.notifier != nil {
		s.notifier.Notify(o.VendorID, types.RoleVendor, realtime.Event{
			Name: realtime.EventOrderStatusChanged,
			Data: map[string]any{"orderId": o.ID, "status": StatusCancelled},
		})
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func newID() types.ID {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return types.ID(hex.EncodeToString(b[:]))
}
