package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.uber.org/zap/zaptest"

	"julianmorley.ca/con-plar/marketplace/internal/memstore"
	"julianmorley.ca/con-plar/marketplace/pkg/models"
	"julianmorley.ca/con-plar/marketplace/pkg/mongo"
	"julianmorley.ca/con-plar/marketplace/pkg/redis"
)

type fixture struct {
	svc   *Service
	store *memstore.Store
	cache *redis.CartCache
	buyer bson.ObjectID
	a, b  *models.Product
}

func setup(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()

	mr := miniredis.RunT(t)
	client := redis.NewClient(mr.Addr(), "")
	t.Cleanup(func() { client.Close() })
	cache := redis.NewCartCache(client)

	buyer := &models.Customer{Email: "buyer@example.com", Role: models.RoleBuyer, AccountStatus: "active"}
	require.NoError(t, store.CreateCustomer(ctx, buyer))

	a := &models.Product{Name: "A", Price: 500, Status: "active"}
	b := &models.Product{Name: "B", Price: 300, Status: "active"}
	require.NoError(t, store.CreateProduct(ctx, a))
	require.NoError(t, store.CreateProduct(ctx, b))

	svc := NewService(store, store, store, cache, models.DefaultPricing, zaptest.NewLogger(t))
	return &fixture{svc: svc, store: store, cache: cache, buyer: buyer.ID, a: a, b: b}
}

func TestAddItemBuildsExampleCart(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, f.a.ID, 2)
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, f.buyer, f.b.ID, 1)
	require.NoError(t, err)

	assert.Equal(t, 1300.0, cart.Subtotal)
	assert.Equal(t, 234.0, cart.Tax)
	assert.Equal(t, 10.0, cart.PlatformFee)
	assert.Equal(t, 1544.0, cart.Total)

	stored, err := f.store.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, 1544.0, stored.Total)
}

func TestAddItemMergesQuantity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, f.a.ID, 1)
	require.NoError(t, err)
	cart, err := f.svc.AddItem(ctx, f.buyer, f.a.ID, 2)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 1500.0, cart.Items[0].Subtotal)
}

func TestAddItemErrors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, f.a.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = f.svc.AddItem(ctx, bson.NewObjectID(), f.a.ID, 1)
	assert.ErrorIs(t, err, ErrBuyerNotFound)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.AddItem(ctx, f.buyer, bson.NewObjectID(), 1)
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = f.store.GetCart(ctx, f.buyer)
	assert.Error(t, err, "failed adds must not create a cart")
}

func TestUpdateAndRemove(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.UpdateItem(ctx, f.buyer, f.a.ID, 3)
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = f.svc.AddItem(ctx, f.buyer, f.a.ID, 2)
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, f.buyer, f.b.ID, 1)
	require.NoError(t, err)

	cart, err := f.svc.UpdateItem(ctx, f.buyer, f.a.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 800.0, cart.Subtotal)

	cart, err = f.svc.UpdateItem(ctx, f.buyer, f.b.ID, 0)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)

	_, err = f.svc.RemoveItem(ctx, f.buyer, f.b.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)

	cart, err = f.svc.RemoveItem(ctx, f.buyer, f.a.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.PlatformFee)
	assert.Zero(t, cart.Total)
}

func TestGetUsesCacheAndWritesInvalidate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	empty, err := f.svc.Get(ctx, f.buyer)
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = f.svc.AddItem(ctx, f.buyer, f.a.ID, 1)
	require.NoError(t, err)

	cart, err := f.svc.Get(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, 1, cart.ItemCount)

	cached, err := f.cache.Get(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, cart.Total, cached.Total)

	_, err = f.svc.AddItem(ctx, f.buyer, f.b.ID, 1)
	require.NoError(t, err)
	_, err = f.cache.Get(ctx, f.buyer)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)

	cart, err = f.svc.Get(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, 2, cart.ItemCount)
}

func TestClear(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Clear(ctx, f.buyer)
	assert.ErrorIs(t, err, ErrCartNotFound)

	_, err = f.svc.AddItem(ctx, f.buyer, f.a.ID, 2)
	require.NoError(t, err)

	cart, err := f.svc.Clear(ctx, f.buyer)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.Total)

	stored, err := f.store.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	assert.Empty(t, stored.Items)
}

func TestWritesRetryOnStaleVersion(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, f.a.ID, 2)
	require.NoError(t, err)

	f.store.FailNext("SaveCart", mongo.ErrStaleWrite)
	cart, err := f.svc.AddItem(ctx, f.buyer, f.b.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1544.0, cart.Total)

	stored, err := f.store.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	assert.Equal(t, cart.Version, stored.Version)
	assert.Len(t, stored.Items, 2)
}

func TestStaleCartCannotOverwriteNewerWrite(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, f.buyer, f.a.ID, 2)
	require.NoError(t, err)
	stale, err := f.store.GetCart(ctx, f.buyer)
	require.NoError(t, err)

	_, err = f.svc.Clear(ctx, f.buyer)
	require.NoError(t, err)

	stale.AddItem(f.b, 1, models.DefaultPricing)
	assert.ErrorIs(t, f.store.SaveCart(ctx, stale), mongo.ErrStaleWrite)

	stored, err := f.store.GetCart(ctx, f.buyer)
	require.NoError(t, err)
	assert.True(t, stored.IsEmpty())
}
