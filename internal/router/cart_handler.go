package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (h *Handler) GetCart(c *gin.Context) {
	buyerID, ok := buyerParam(c, c.Param("user_id"))
	if !ok {
		return
	}

	cart, err := h.carts.Get(c.Request.Context(), buyerID)
	if err != nil {
		h.fail(c, err, "Failed to get cart")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", global.FieldError("body", err.Error(), "validation_error"))
		return
	}
	buyerID, productID, ok := cartTarget(c, req.UserID, req.ProductID)
	if !ok {
		return
	}

	cart, err := h.carts.AddItem(c.Request.Context(), buyerID, productID, req.Quantity)
	if err != nil {
		h.fail(c, err, "Failed to add item to cart")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

// UpdateCartItem sets a line's quantity. Zero or less removes the line.
func (h *Handler) UpdateCartItem(c *gin.Context) {
	var req models.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", global.FieldError("body", err.Error(), "validation_error"))
		return
	}
	buyerID, productID, ok := cartTarget(c, req.UserID, req.ProductID)
	if !ok {
		return
	}

	cart, err := h.carts.UpdateItem(c.Request.Context(), buyerID, productID, req.Quantity)
	if err != nil {
		h.fail(c, err, "Failed to update cart item")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	var req models.RemoveCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request", global.FieldError("body", err.Error(), "validation_error"))
		return
	}
	buyerID, productID, ok := cartTarget(c, req.UserID, req.ProductID)
	if !ok {
		return
	}

	cart, err := h.carts.RemoveItem(c.Request.Context(), buyerID, productID)
	if err != nil {
		h.fail(c, err, "Failed to remove cart item")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

func (h *Handler) ClearCart(c *gin.Context) {
	buyerID, ok := buyerParam(c, c.Param("user_id"))
	if !ok {
		return
	}

	cart, err := h.carts.Clear(c.Request.Context(), buyerID)
	if err != nil {
		h.fail(c, err, "Failed to clear cart")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(cart))
}

func cartTarget(c *gin.Context, rawUser, rawProduct string) (bson.ObjectID, bson.ObjectID, bool) {
	buyerID, ok := buyerParam(c, rawUser)
	if !ok {
		return bson.NilObjectID, bson.NilObjectID, false
	}
	productID, ok := parseObjectID(c, rawProduct, "product_id")
	return buyerID, productID, ok
}
