// README: Handler tests for auth, role enforcement, and error mapping.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"presto/internal/http/handlers"
	httpmiddleware "presto/internal/http/middleware"
	"presto/internal/infra"
	"presto/internal/modules/delivery"
	"presto/internal/modules/order"
	"presto/internal/types"
)

// stubTokenVerifier resolves every token to one fixed identity.
type stubTokenVerifier struct {
	token *infra.FirebaseToken
	err   error
}

func (s *stubTokenVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, s.err
}

func makeVerifier(uid, role string) *stubTokenVerifier {
	claims := map[string]interface{}{}
	if role != "" {
		claims["role"] = role
	}
	return &stubTokenVerifier{token: &infra.FirebaseToken{UID: uid, Claims: claims}}
}

// memBackend implements order.Storage plus delivery.Orders/delivery.Storage
// over one shared record map.
type memBackend struct {
	mu     sync.Mutex
	orders map[types.ID]*order.Order
}

func newMemBackend(orders ...*order.Order) *memBackend {
	m := &memBackend{orders: map[types.ID]*order.Order{}}
	for _, o := range orders {
		cp := *o
		m.orders[o.ID] = &cp
	}
	return m
}

func (m *memBackend) Create(_ context.Context, o *order.Order, _ []order.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *memBackend) Get(_ context.Context, id types.ID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memBackend) UpdateStatus(_ context.Context, id types.ID, from, to order.Status, version int) (bool, error) {
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

func (m *memBackend) DeletePending(_ context.Context, id types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok || o.Status != order.StatusPending {
		return false, nil
	}
	delete(m.orders, id)
	return true, nil
}

func (m *memBackend) Claim(_ context.Context, orderID, deliverymanID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.Status != order.StatusReady || o.DeliverymanID != nil {
		return false, nil
	}
	d := deliverymanID
	o.DeliverymanID = &d
	return true, nil
}

func (m *memBackend) Advance(_ context.Context, orderID, deliverymanID types.ID, from, to order.DeliveryStatus, terminal bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.DeliverymanID == nil || *o.DeliverymanID != deliverymanID ||
		o.Status != order.StatusReady || o.DeliveryStatus != from {
		return false, nil
	}
	o.DeliveryStatus = to
	if terminal {
		o.Status = order.StatusShipped
	}
	return true, nil
}

func (m *memBackend) AppendEvent(_ context.Context, _ *order.Event) error { return nil }

func buildTestRouter(verifier infra.TokenVerifier, backend *memBackend) *gin.Engine {
	gin.SetMode(gin.TestMode)
	orderSvc := order.NewService(backend, nil, nil)
	deliverySvc := delivery.NewService(backend, backend, nil, nil)

	r := gin.New()
	api := r.Group("/api", httpmiddleware.Auth(verifier))
	oh := handlers.NewOrderHandler(orderSvc)
	api.POST("/orders", oh.Create)
	api.GET("/orders/:id", oh.Get)
	api.PATCH("/orders/:id/status", oh.UpdateStatus)
	api.POST("/orders/:id/cancel", oh.Cancel)
	dh := handlers.NewDeliveryHandler(deliverySvc)
	api.POST("/delivery/orders/:id/accept", dh.Accept)
	api.PATCH("/delivery/orders/:id/status", dh.UpdateStatus)
	return r
}

func doRequest(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer testtoken")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func pendingOrder() *order.Order {
	return &order.Order{
		ID:             "o1",
		CustomerID:     "c1",
		VendorID:       "v1",
		Status:         order.StatusPending,
		DeliveryStatus: order.DeliveryNone,
		PaymentMethod:  order.PaymentCard,
	}
}

func TestUnauthenticatedRejected(t *testing.T) {
	r := buildTestRouter(&stubTokenVerifier{err: errors.New("no token")}, newMemBackend())
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestCheckoutRequiresCustomerRole(t *testing.T) {
	r := buildTestRouter(makeVerifier("v1", "vendor"), newMemBackend())
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{
		"vendor_id":      "v1",
		"payment_method": "cash",
		"items":          []map[string]any{{"product_id": "p1", "quantity": 1, "price": 100}},
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestCheckoutCreatesPendingOrder(t *testing.T) {
	backend := newMemBackend()
	r := buildTestRouter(makeVerifier("c1", "customer"), backend)
	w := doRequest(r, http.MethodPost, "/api/orders", map[string]any{
		"vendor_id":      "v1",
		"address":        "14 Tahrir St",
		"payment_method": "card",
		"items":          []map[string]any{{"product_id": "p1", "quantity": 2, "price": 500}},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		OrderID string `json:"order_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.OrderID == "" {
		t.Fatalf("expected order id in response, got %s", w.Body.String())
	}
	o, err := backend.Get(context.Background(), types.ID(resp.OrderID))
	if err != nil || o.Status != order.StatusPending {
		t.Fatalf("expected pending order persisted, got %+v err %v", o, err)
	}
}

func TestVendorTransition(t *testing.T) {
	backend := newMemBackend(pendingOrder())
	r := buildTestRouter(makeVerifier("v1", "vendor"), backend)

	w := doRequest(r, http.MethodPatch, "/api/orders/o1/status", map[string]any{"status": "confirmed"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// illegal jump is a conflict, not a 500
	w = doRequest(r, http.MethodPatch, "/api/orders/o1/status", map[string]any{"status": "delivered"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
}

func TestVendorTransitionWrongVendor(t *testing.T) {
	backend := newMemBackend(pendingOrder())
	r := buildTestRouter(makeVerifier("v2", "vendor"), backend)
	w := doRequest(r, http.MethodPatch, "/api/orders/o1/status", map[string]any{"status": "confirmed"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestTransitionRequiresVendorRole(t *testing.T) {
	backend := newMemBackend(pendingOrder())
	r := buildTestRouter(makeVerifier("c1", "customer"), backend)
	w := doRequest(r, http.MethodPatch, "/api/orders/o1/status", map[string]any{"status": "confirmed"})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestCancelPendingOrder(t *testing.T) {
	backend := newMemBackend(pendingOrder())
	r := buildTestRouter(makeVerifier("c1", "customer"), backend)
	w := doRequest(r, http.MethodPost, "/api/orders/o1/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if _, err := backend.Get(context.Background(), "o1"); !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected order removed, got %v", err)
	}
}

func TestUnknownOrderIs404(t *testing.T) {
	r := buildTestRouter(makeVerifier("v1", "vendor"), newMemBackend())
	w := doRequest(r, http.MethodPatch, "/api/orders/missing/status", map[string]any{"status": "confirmed"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestGetOrderOnlyForParties(t *testing.T) {
	backend := newMemBackend(pendingOrder())

	r := buildTestRouter(makeVerifier("c1", "customer"), backend)
	if w := doRequest(r, http.MethodGet, "/api/orders/o1", nil); w.Code != http.StatusOK {
		t.Fatalf("customer on own order: expected 200, got %d", w.Code)
	}

	r = buildTestRouter(makeVerifier("c9", "customer"), backend)
	if w := doRequest(r, http.MethodGet, "/api/orders/o1", nil); w.Code != http.StatusForbidden {
		t.Fatalf("stranger on order: expected 403, got %d", w.Code)
	}
}
