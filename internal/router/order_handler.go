package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/auth"
	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/settlement"
)

func (h *Handler) GetUserOrders(c *gin.Context) {
	buyerID, ok := buyerParam(c, c.Param("user_id"))
	if !ok {
		return
	}
	page, limit := pagination(c)

	orders, total, err := h.orders.ListBuyerOrders(c.Request.Context(), buyerID, page, limit)
	if err != nil {
		h.fail(c, err, "Failed to get orders")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(paged(orders, total, page, limit)))
}

// GetOrder returns one order. Buyers see their own, sellers see orders
// holding their lines, admins see any.
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := parseObjectID(c, c.Param("order_id"), "order_id")
	if !ok {
		return
	}

	order, err := h.orders.Get(c.Request.Context(), orderID)
	if err != nil {
		h.fail(c, err, "Failed to get order")
		return
	}
	if p, _ := principal(c); !p.Can(auth.CapAdmin) && order.BuyerID != p.ID && !order.HasSeller(p.ID) {
		h.fail(c, settlement.ErrOrderNotFound, "Failed to get order")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

func (h *Handler) GetAllOrders(c *gin.Context) {
	page, limit := pagination(c)
	orders, total, err := h.orders.ListOrders(c.Request.Context(), models.OrderStatus(c.Query("status")), page, limit)
	if err != nil {
		h.fail(c, err, "Failed to list orders")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(paged(orders, total, page, limit)))
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	orderID, ok := parseObjectID(c, c.Param("order_id"), "order_id")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status is required", global.FieldError("status", "status is required", "required"))
		return
	}

	p, _ := principal(c)
	seller := p.ID
	if p.Can(auth.CapAdmin) {
		seller = bson.NilObjectID
	}

	order, err := h.orders.AdvanceStatus(c.Request.Context(), seller, orderID, req.Status)
	if err != nil {
		h.fail(c, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

// CancelOrder cancels the caller's own order. Admins may cancel any order.
func (h *Handler) CancelOrder(c *gin.Context) {
	orderID, ok := parseObjectID(c, c.Param("order_id"), "order_id")
	if !ok {
		return
	}

	p, _ := principal(c)
	owner := p.ID
	if p.Can(auth.CapAdmin) {
		owner = bson.NilObjectID
	}

	order, err := h.orders.Cancel(c.Request.Context(), owner, orderID)
	if err != nil {
		h.fail(c, err, "Failed to cancel order")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(order))
}

// GetSalesSummary reports order counts and revenue per status, with AI
// commentary when the AI service is configured.
func (h *Handler) GetSalesSummary(c *gin.Context) {
	report, err := h.store.SalesReport(c.Request.Context())
	if err != nil {
		h.fail(c, err, "Failed to build sales report")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(h.ai.SalesInsights(c.Request.Context(), report)))
}
