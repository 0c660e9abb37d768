package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/settlement"
)

// CreatePaymentOrder opens a gateway order for the buyer's current cart.
func (h *Handler) CreatePaymentOrder(c *gin.Context) {
	var req models.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "user_id is required", global.FieldError("user_id", "user_id is required", "required"))
		return
	}
	buyerID, ok := buyerParam(c, req.UserID)
	if !ok {
		return
	}

	checkout, err := h.engine.CreateIntent(c.Request.Context(), buyerID)
	if err != nil {
		h.fail(c, err, "Failed to create payment order")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":           true,
		"order":             checkout.GatewayOrder,
		"payment_record_id": checkout.Intent.ID.Hex(),
		"razorpay_key_id":   checkout.KeyID,
	})
}

// VerifyPayment handles the gateway's signed confirmation. Replays of a
// settled payment return the order created the first time.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Missing payment verification fields", global.FieldError("body", err.Error(), "validation_error"))
		return
	}
	buyerID, ok := buyerParam(c, req.UserID)
	if !ok {
		return
	}

	result, err := h.engine.VerifyCallback(c.Request.Context(), settlement.VerifyRequest{
		BuyerID:          buyerID,
		GatewayOrderID:   req.RazorpayOrderID,
		GatewayPaymentID: req.RazorpayPaymentID,
		Signature:        req.RazorpaySignature,
		ShippingAddress:  req.ShippingAddress,
	})
	if err != nil {
		h.fail(c, err, "Failed to verify payment")
		return
	}

	c.JSON(http.StatusOK, global.SuccessResponse(gin.H{
		"payment":  result.Intent,
		"order":    result.Order,
		"replayed": result.Replayed,
	}))
}

// ListPayments is the admin view of payment intents.
func (h *Handler) ListPayments(c *gin.Context) {
	status := models.PaymentStatus(c.Query("status"))
	if status != "" && !status.IsValid() {
		badRequest(c, "Invalid status filter", global.FieldError("status", "status must be created, pending, paid or failed", "invalid_value"))
		return
	}
	page, limit := pagination(c)

	intents, total, err := h.store.ListIntents(c.Request.Context(), status, page, limit)
	if err != nil {
		h.fail(c, err, "Failed to list payments")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(paged(intents, total, page, limit)))
}
