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

const cartTTL = 1 * time.Hour

// CartCache is a read-through copy of each buyer's cart. Mongo stays the
// source of truth; writers call Delete after every mutation.
type CartCache struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewCartCache(client *redisclient.Client) *CartCache {
	return &CartCache{client: client, ttl: cartTTL}
}

func cartKey(buyerID bson.ObjectID) string {
	return fmt.Sprintf("cart:%s", buyerID.Hex())
}

func (c *CartCache) Get(ctx context.Context, buyerID bson.ObjectID) (*models.Cart, error) {
	raw, err := c.client.Get(ctx, cartKey(buyerID)).Bytes()
	if err != nil {
		return nil, miss(err)
	}

	var cart models.Cart
	if err := json.Unmarshal(raw, &cart); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return &cart, nil
}

func (c *CartCache) Set(ctx context.Context, cart *models.Cart) error {
	raw, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("failed to marshal cart: %w", err)
	}
	return c.client.Set(ctx, cartKey(cart.BuyerID), raw, c.ttl).Err()
}

func (c *CartCache) Delete(ctx context.Context, buyerID bson.ObjectID) error {
	return c.client.Del(ctx, cartKey(buyerID)).Err()
}
