// README: Order state machine tests (transition table + service fan-out).
package order

import (
	"context"
	"errors"
	"sync"
	"testing"

	"presto/internal/realtime"
	"presto/internal/types"
)

// TestCanTransition verifies the transition table without a database.
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		// the only legal forward edges
		{StatusPending, StatusConfirmed, true},
		{StatusConfirmed, StatusReady, true},
		{StatusReady, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		// cancellation only from pending
		{StatusPending, StatusCancelled, true},
		{StatusConfirmed, StatusCancelled, false},
		{StatusReady, StatusCancelled, false},
		{StatusShipped, StatusCancelled, false},
		// no skipping
		{StatusPending, StatusReady, false},
		{StatusPending, StatusShipped, false},
		{StatusConfirmed, StatusShipped, false},
		{StatusConfirmed, StatusDelivered, false},
		// no regression
		{StatusReady, StatusConfirmed, false},
		{StatusShipped, StatusReady, false},
		// terminal states have no outgoing edges
		{StatusDelivered, StatusShipped, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusPending, false},
		{StatusCancelled, StatusConfirmed, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

// memStore is an in-memory Storage with the same conditional-update
// semantics as the Postgres store.
type memStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
	items  map[types.ID][]Item
	events []Event
}

func newMemStore() *memStore {
	return &memStore{orders: map[types.ID]*Order{}, items: map[types.ID][]Item{}}
}

func (m *memStore) Create(_ context.Context, o *Order, items []Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	m.items[o.ID] = items
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != from || o.StatusVersion != version {
		return false, nil
	}
	o.Status = to
	o.StatusVersion++
	return true, nil
}

func (m *memStore) DeletePending(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	delete(m.orders, id)
	delete(m.items, id)
	return true, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

type sentEvent struct {
	id   types.ID
	role types.Role
	ev   realtime.Event
}

type recordingNotifier struct {
	mu         sync.Mutex
	notified   []sentEvent
	broadcasts []sentEvent
}

func (n *recordingNotifier) Notify(id types.ID, role types.Role, ev realtime.Event) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notified = append(n.notified, sentEvent{id: id, role: role, ev: ev})
	return true
}

func (n *recordingNotifier) Broadcast(role types.Role, ev realtime.Event) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.broadcasts = append(n.broadcasts, sentEvent{role: role, ev: ev})
	return 1
}

func (n *recordingNotifier) eventsFor(id types.ID, name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, s := range n.notified {
		if s.id == id && s.ev.Name == name {
			count++
		}
	}
	return count
}

type fakeWallet struct {
	debits []types.Money
	err    error
}

func (w *fakeWallet) Debit(_ context.Context, _ types.ID, amount types.Money) error {
	if w.err != nil {
		return w.err
	}
	w.debits = append(w.debits, amount)
	return nil
}

func checkout(t *testing.T, svc *Service, pm PaymentMethod) types.ID {
	t.Helper()
	id, err := svc.Checkout(context.Background(), CheckoutCommand{
		CustomerID:    "c1",
		VendorID:      "v1",
		Address:       "14 Tahrir St",
		PaymentMethod: pm,
		Items: []ItemInput{
			{ProductID: "p1", Quantity: 2, Price: types.Money{Amount: 500, Currency: "EGP"}},
			{ProductID: "p2", Quantity: 1, Price: types.Money{Amount: 300, Currency: "EGP"}},
		},
	})
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	return id
}

// TestVendorFlowToReady covers the vendor lifecycle up to ready: the
// customer is notified on every transition and the captain pool receives
// exactly one claimable-order broadcast.
func TestVendorFlowToReady(t *testing.T) {
	store := newMemStore()
	notifier := &recordingNotifier{}
	svc := NewService(store, nil, notifier)

	id := checkout(t, svc, PaymentCard)

	o, _ := store.Get(context.Background(), id)
	if o.TotalPrice.Amount != 1300 {
		t.Fatalf("expected snapshot total 1300, got %d", o.TotalPrice.Amount)
	}

	for _, to := range []Status{StatusConfirmed, StatusReady} {
		if err := svc.Transition(context.Background(), TransitionCommand{OrderID: id, VendorID: "v1", To: to}); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}

	o, _ = store.Get(context.Background(), id)
	if o.Status != StatusReady {
		t.Fatalf("expected ready, got %s", o.Status)
	}
	if got := notifier.eventsFor("c1", realtime.EventOrderStatusChanged); got != 2 {
		t.Fatalf("expected 2 orderStatusChanged to customer, got %d", got)
	}
	if len(notifier.broadcasts) != 1 || notifier.broadcasts[0].role != types.RoleCaptain {
		t.Fatalf("expected exactly 1 captain-pool broadcast, got %+v", notifier.broadcasts)
	}
	if notifier.broadcasts[0].ev.Name != realtime.EventDeliverableOrder {
		t.Fatalf("unexpected broadcast event %s", notifier.broadcasts[0].ev.Name)
	}
}

func TestTransitionIllegalEdge(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, &recordingNotifier{})
	id := checkout(t, svc, PaymentCard)

	err := svc.Transition(context.Background(), TransitionCommand{OrderID: id, VendorID: "v1", To: StatusShipped})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	o, _ := store.Get(context.Background(), id)
	if o.Status != StatusPending {
		t.Fatalf("illegal edge must not mutate the record, got %s", o.Status)
	}
}

func TestTransitionWrongVendor(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, &recordingNotifier{})
	id := checkout(t, svc, PaymentCash)

	err := svc.Transition(context.Background(), TransitionCommand{OrderID: id, VendorID: "v2", To: StatusConfirmed})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTransitionUnknownOrder(t *testing.T) {
	svc := NewService(newMemStore(), nil, &recordingNotifier{})
	err := svc.Transition(context.Background(), TransitionCommand{OrderID: "missing", VendorID: "v1", To: StatusConfirmed})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestCancel covers scenario E: a pending order is removed with its items;
// once confirmed, cancellation fails and the record is untouched.
func TestCancel(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, &recordingNotifier{})
	id := checkout(t, svc, PaymentCard)

	if err := svc.Cancel(context.Background(), CancelCommand{OrderID: id, CustomerID: "c1"}); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}
	if _, err := store.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected order removed, got %v", err)
	}
	if len(store.items[id]) != 0 {
		t.Fatalf("expected items removed")
	}

	id = checkout(t, svc, PaymentCard)
	if err := svc.Transition(context.Background(), TransitionCommand{OrderID: id, VendorID: "v1", To: StatusConfirmed}); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	err := svc.Cancel(context.Background(), CancelCommand{OrderID: id, CustomerID: "c1"})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if o, _ := store.Get(context.Background(), id); o.Status != StatusConfirmed {
		t.Fatalf("failed cancel must not mutate the record")
	}
}

func TestCancelWrongCustomer(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, &recordingNotifier{})
	id := checkout(t, svc, PaymentCard)

	err := svc.Cancel(context.Background(), CancelCommand{OrderID: id, CustomerID: "c2"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCheckoutWalletDebit(t *testing.T) {
	store := newMemStore()
	w := &fakeWallet{}
	svc := NewService(store, w, &recordingNotifier{})

	checkout(t, svc, PaymentWallet)
	if len(w.debits) != 1 || w.debits[0].Amount != 1300 {
		t.Fatalf("expected one debit of 1300, got %+v", w.debits)
	}

	w.err = errors.New("insufficient")
	if _, err := svc.Checkout(context.Background(), CheckoutCommand{
		CustomerID:    "c1",
		VendorID:      "v1",
		PaymentMethod: PaymentWallet,
		Items:         []ItemInput{{ProductID: "p1", Quantity: 1, Price: types.Money{Amount: 100}}},
	}); err == nil {
		t.Fatalf("expected checkout to fail when the debit fails")
	}
}

func TestCheckoutNotifiesBothParties(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := NewService(newMemStore(), nil, notifier)
	checkout(t, svc, PaymentCash)

	if got := notifier.eventsFor("c1", realtime.EventNewOrderCreated); got != 1 {
		t.Fatalf("expected newOrderCreated to customer, got %d", got)
	}
	if got := notifier.eventsFor("v1", realtime.EventNewOrderForVendor); got != 1 {
		t.Fatalf("expected newOrderForVendor to vendor, got %d", got)
	}
}

func TestCheckoutBadInput(t *testing.T) {
	svc := NewService(newMemStore(), nil, &recordingNotifier{})

	_, err := svc.Checkout(context.Background(), CheckoutCommand{CustomerID: "c1", VendorID: "v1", PaymentMethod: "bitcoin",
		Items: []ItemInput{{ProductID: "p1", Quantity: 1, Price: types.Money{Amount: 100}}}})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for unknown payment method, got %v", err)
	}

	_, err = svc.Checkout(context.Background(), CheckoutCommand{CustomerID: "c1", VendorID: "v1", PaymentMethod: PaymentCash})
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest for empty items, got %v", err)
	}
}

// TestConcurrentTransitions exercises the CAS path: many racers on the same
// edge, exactly one write lands.
func TestConcurrentTransitions(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil, &recordingNotifier{})
	id := checkout(t, svc, PaymentCard)

	const racers = 8
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Transition(context.Background(), TransitionCommand{OrderID: id, VendorID: "v1", To: StatusConfirmed})
		}()
	}
	wg.Wait()
	close(errs)

	success := 0
	for err := range errs {
		if err == nil {
			success++
			continue
		}
		if !errors.Is(err, ErrConflict) && !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 {
		t.Fatalf("expected exactly 1 success, got %d", success)
	}
	o, _ := store.Get(context.Background(), id)
	if o.Status != StatusConfirmed || o.StatusVersion != 1 {
		t.Fatalf("unexpected final state %s v%d", o.Status, o.StatusVersion)
	}
}
