// README: Order handlers for checkout, read, vendor transition, and cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presto/internal/http/middleware"
	"presto/internal/modules/order"
	"presto/internal/types"
)

type OrderHandler struct {
	order *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{order: svc}
}

type checkoutItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type checkoutReq struct {
	VendorID      string            `json:"vendor_id"`
	Address       string            `json:"address"`
	PaymentMethod string            `json:"payment_method"`
	Items         []checkoutItemReq `json:"items"`
}

// Create is customer checkout. The acting customer is the authenticated
// caller; item prices are the snapshot the order keeps.
func (h *OrderHandler) Create(c *gin.Context) {
	if middleware.CallerRole(c) != string(types.RoleCustomer) {
		writeError(c, http.StatusForbidden, "customer role required")
		return
	}
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	items := make([]order.ItemInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, order.ItemInput{
			ProductID: types.ID(it.ProductID),
			Quantity:  it.Quantity,
			Price:     types.Money{Amount: it.Price, Currency: "EGP"},
		})
	}
	id, err := h.order.Checkout(c.Request.Context(), order.CheckoutCommand{
		CustomerID:    types.ID(middleware.CallerUID(c)),
		VendorID:      types.ID(req.VendorID),
		Address:       req.Address,
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		Items:         items,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"order_id": id, "status": order.StatusPending})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	o, err := h.order.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	uid := types.ID(middleware.CallerUID(c))
	if o.CustomerID != uid && o.VendorID != uid && (o.DeliverymanID == nil || *o.DeliverymanID != uid) {
		writeError(c, http.StatusForbidden, "not a party to this order")
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"order_id":        o.ID,
		"status":          o.Status,
		"delivery_status": o.DeliveryStatus,
		"payment_method":  o.PaymentMethod,
		"total_price":     o.TotalPrice,
		"address":         o.Address,
	})
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus is the vendor-driven lifecycle transition.
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	if middleware.CallerRole(c) != string(types.RoleVendor) {
		writeError(c, http.StatusForbidden, "vendor role required")
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req updateStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.order.Transition(c.Request.Context(), order.TransitionCommand{
		OrderID:  types.ID(id),
		VendorID: types.ID(middleware.CallerUID(c)),
		To:       order.Status(req.Status),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"order_id": id, "status": req.Status})
}

// Cancel removes a pending order; past pending this fails with a conflict.
func (h *OrderHandler) Cancel(c *gin.Context) {
	if middleware.CallerRole(c) != string(types.RoleCustomer) {
		writeError(c, http.StatusForbidden, "customer role required")
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	err := h.order.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID:    types.ID(id),
		CustomerID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"order_id": id, "status": order.StatusCancelled})
}
