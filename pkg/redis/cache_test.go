package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"

	"julianmorley.ca/con-plar/marketplace/pkg/models"
)

func setupTestRedis(t *testing.T) *miniredis.Miniredis {
	mr := miniredis.RunT(t)
	return mr
}

func TestCartCacheRoundTrip(t *testing.T) {
	mr := setupTestRedis(t)
	client := NewClient(mr.Addr(), "")
	defer client.Close()
	cache := NewCartCache(client)
	ctx := context.Background()

	cart := models.NewCart(bson.NewObjectID())
	cart.AddItem(&models.Product{ID: bson.NewObjectID(), Name: "A", Price: 500}, 2, models.DefaultPricing)

	_, err := cache.Get(ctx, cart.BuyerID)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.Set(ctx, cart))
	got, err := cache.Get(ctx, cart.BuyerID)
	require.NoError(t, err)
	assert.Equal(t, cart.Total, got.Total)
	require.Len(t, got.Items, 1)
	assert.Equal(t, cart.Items[0].ProductID, got.Items[0].ProductID)

	require.NoError(t, cache.Delete(ctx, cart.BuyerID))
	_, err = cache.Get(ctx, cart.BuyerID)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestCartCacheExpires(t *testing.T) {
	mr := setupTestRedis(t)
	client := NewClient(mr.Addr(), "")
	defer client.Close()
	cache := NewCartCache(client)
	ctx := context.Background()

	cart := models.NewCart(bson.NewObjectID())
	require.NoError(t, cache.Set(ctx, cart))

	mr.FastForward(cartTTL + time.Second)
	_, err := cache.Get(ctx, cart.BuyerID)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestProductCache(t *testing.T) {
	mr := setupTestRedis(t)
	client := NewClient(mr.Addr(), "")
	defer client.Close()
	cache := NewProductCache(client)
	ctx := context.Background()

	a := &models.Product{ID: bson.NewObjectID(), Name: "Kettle", Category: "kitchen", Price: 40}
	b := &models.Product{ID: bson.NewObjectID(), Name: "Mug", Category: "kitchen", Price: 8}
	require.NoError(t, cache.Set(ctx, a))
	require.NoError(t, cache.Set(ctx, b))
	require.NoError(t, cache.Set(ctx, a))

	got, err := cache.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Name)

	ids, err := cache.RecentIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []bson.ObjectID{a.ID, b.ID}, ids)

	recent, err := mr.List("products:recent")
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	assert.False(t, mr.Exists("category:kitchen"))

	require.NoError(t, cache.Remove(ctx, a))
	_, err = cache.Get(ctx, a.ID)
	assert.ErrorIs(t, err, ErrCacheMiss)

	ids, err = cache.RecentIDs(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []bson.ObjectID{b.ID}, ids)
}
