package router

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/marketplace/pkg/global"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func (h *Handler) GetAllProducts(c *gin.Context) {
	page, limit := pagination(c)
	products, total, err := h.store.ListProducts(c.Request.Context(), c.Query("category"), page, limit)
	if err != nil {
		h.fail(c, err, "Failed to get products")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(paged(products, total, page, limit)))
}

// GetProductByID reads through the Redis product cache.
func (h *Handler) GetProductByID(c *gin.Context) {
	id, ok := parseObjectID(c, c.Param("id"), "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if h.products != nil {
		if product, err := h.products.Get(ctx, id); err == nil {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, global.SuccessResponse(product))
			return
		}
	}

	product, err := h.store.GetProduct(ctx, id)
	if err != nil {
		h.fail(c, err, "Failed to fetch product")
		return
	}
	h.cacheProduct(ctx, product)

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, global.SuccessResponse(product))
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req models.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid product", global.FieldError("body", err.Error(), "validation_error"))
		return
	}
	p, _ := principal(c)

	product := req.ToProduct(p.ID, h.currency)
	ctx := c.Request.Context()
	if err := h.store.CreateProduct(ctx, product); err != nil {
		h.fail(c, err, "Failed to create product")
		return
	}
	h.cacheProduct(ctx, product)
	c.JSON(http.StatusCreated, global.SuccessResponse(product))
}

func (h *Handler) cacheProduct(ctx context.Context, product *models.Product) {
	if h.products == nil {
		return
	}
	if err := h.products.Set(ctx, product); err != nil {
		h.logger.Warn("failed to cache product", zap.String("product_id", product.ID.Hex()), zap.Error(err))
	}
}

// recentProducts returns cached recently-viewed listings that are still on sale.
func (h *Handler) recentProducts(ctx context.Context, n int) []models.Product {
	if h.products == nil {
		return nil
	}
	ids, err := h.products.RecentIDs(ctx, n)
	if err != nil {
		h.logger.Warn("failed to read recent products", zap.Error(err))
		return nil
	}

	out := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		product, err := h.products.Get(ctx, id)
		if err != nil {
			continue
		}
		if !product.IsAvailable() {
			if err := h.products.Remove(ctx, product); err != nil {
				h.logger.Warn("failed to evict product", zap.String("product_id", id.Hex()), zap.Error(err))
			}
			continue
		}
		out = append(out, *product)
	}
	return out
}

func mergeProducts(first, second []models.Product) []models.Product {
	seen := make(map[bson.ObjectID]bool, len(first)+len(second))
	out := make([]models.Product, 0, len(first)+len(second))
	for _, list := range [][]models.Product{first, second} {
		for _, p := range list {
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out
}
