package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

const (
	productTTL        = 24 * time.Hour
	recentProductsKey = "products:recent"
	recentProductsMax = 100
)

// ProductCache keeps catalogue listings keyed by id, plus a recently-listed
// id list used by the recommendation endpoint.
type ProductCache struct {
	client *redisclient.Client
}

func NewProductCache(client *redisclient.Client) *ProductCache {
	return &ProductCache{client: client}
}

func productKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (c *ProductCache) Get(ctx context.Context, id bson.ObjectID) (*models.Product, error) {
	productJSON, err := c.client.Get(ctx, productKey(id.Hex())).Result()
	if err != nil {
		return nil, miss(err)
	}

	var product models.Product
	if err := json.Unmarshal([]byte(productJSON), &product); err != nil {
		return nil, fmt.Errorf("failed to unmarshal product: %w", err)
	}
	return &product, nil
}

// Set stores a single product and moves it to the front of the recency list.
func (c *ProductCache) Set(ctx context.Context, product *models.Product) error {
	productJSON, err := json.Marshal(product)
	if err != nil {
		return fmt.Errorf("failed to marshal product %s: %w", product.ID.Hex(), err)
	}
	id := product.ID.Hex()

	// Use pipeline for atomic operations
	pipe := c.client.TxPipeline()

	pipe.Set(ctx, productKey(id), productJSON, productTTL)

	pipe.LRem(ctx, recentProductsKey, 0, id)
	pipe.LPush(ctx, recentProductsKey, id)
	pipe.LTrim(ctx, recentProductsKey, 0, recentProductsMax-1)
	pipe.Expire(ctx, recentProductsKey, productTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to execute Redis pipeline for product %s: %w", id, err)
	}
	return nil
}

// Remove drops a product and its recency entry.
func (c *ProductCache) Remove(ctx context.Context, product *models.Product) error {
	id := product.ID.Hex()
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, productKey(id))
	pipe.LRem(ctx, recentProductsKey, 0, id)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove product from Redis cache: %w", err)
	}
	return nil
}

// RecentIDs returns up to n most recently cached product ids, newest first.
func (c *ProductCache) RecentIDs(ctx context.Context, n int) ([]bson.ObjectID, error) {
	raw, err := c.client.LRange(ctx, recentProductsKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]bson.ObjectID, 0, len(raw))
	for _, s := range raw {
		id, err := bson.ObjectIDFromHex(s)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
