package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"julianmorley.ca/con-plar/marketplace/pkg/global"
)

const recommendationPool = 50

// GetRecommendations ranks recently viewed and catalogue products against
// the buyer's cart.
func (h *Handler) GetRecommendations(c *gin.Context) {
	buyerID, ok := buyerParam(c, c.Param("user_id"))
	if !ok {
		return
	}
	ctx := c.Request.Context()

	cart, err := h.carts.Get(ctx, buyerID)
	if err != nil {
		h.fail(c, err, "Failed to get cart")
		return
	}

	catalogue, _, err := h.store.ListProducts(ctx, "", 1, recommendationPool)
	if err != nil {
		h.fail(c, err, "Failed to get products")
		return
	}
	candidates := mergeProducts(h.recentProducts(ctx, recommendationPool), catalogue)

	c.JSON(http.StatusOK, global.SuccessResponse(h.ai.Rank(ctx, cart, candidates)))
}
