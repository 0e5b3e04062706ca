// README: Deliveryman handlers for the claim and progress phases.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"presto/internal/http/middleware"
	"presto/internal/modules/delivery"
	"presto/internal/modules/order"
	"presto/internal/types"
)

type DeliveryHandler struct {
	delivery *delivery.Service
}

func NewDeliveryHandler(svc *delivery.Service) *DeliveryHandler {
	return &DeliveryHandler{delivery: svc}
}

type acceptReq struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Vehicle string `json:"vehicle"`
}

// Accept claims a ready, unclaimed order for the authenticated captain.
func (h *DeliveryHandler) Accept(c *gin.Context) {
	if middleware.CallerRole(c) != string(types.RoleCaptain) {
		writeError(c, http.StatusForbidden, "captain role required")
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req acceptReq
	// body is optional: only a contact summary
	_ = c.ShouldBindJSON(&req)

	err := h.delivery.Accept(c.Request.Context(), delivery.AcceptCommand{
		OrderID:       types.ID(id),
		DeliverymanID: types.ID(middleware.CallerUID(c)),
		Name:          req.Name,
		Phone:         req.Phone,
		Vehicle:       req.Vehicle,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"order_id": id, "status": order.StatusReady})
}

type advanceReq struct {
	Status string `json:"status"`
}

// UpdateStatus advances the delivery sub-status along the payment-method
// sequence; the terminal step ships the order.
func (h *DeliveryHandler) UpdateStatus(c *gin.Context) {
	if middleware.CallerRole(c) != string(types.RoleCaptain) {
		writeError(c, http.StatusForbidden, "captain role required")
		return
	}
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing order id")
		return
	}
	var req advanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	err := h.delivery.Advance(c.Request.Context(), delivery.AdvanceCommand{
		OrderID:       types.ID(id),
		DeliverymanID: types.ID(middleware.CallerUID(c)),
		To:            order.DeliveryStatus(req.Status),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"order_id": id, "delivery_status": req.Status})
}
