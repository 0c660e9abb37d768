package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func product(name string, price float64) *Product {
	return &Product{ID: bson.NewObjectID(), Name: name, Price: price, Status: "active"}
}

func TestCartTotalsExample(t *testing.T) {
	cart := NewCart(bson.NewObjectID())
	cart.AddItem(product("A", 500), 2, DefaultPricing)
	cart.AddItem(product("B", 300), 1, DefaultPricing)

	assert.Equal(t, 1300.0, cart.Subtotal)
	assert.Equal(t, 234.0, cart.Tax)
	assert.Equal(t, 10.0, cart.PlatformFee)
	assert.Equal(t, 1544.0, cart.Total)
	assert.Equal(t, 3, cart.ItemCount)
}

func TestCartAddItemMergesExistingLine(t *testing.T) {
	cart := NewCart(bson.NewObjectID())
	p := product("A", 19.99)
	cart.AddItem(p, 1, DefaultPricing)
	cart.AddItem(p, 2, DefaultPricing)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
	assert.Equal(t, 59.97, cart.Items[0].Subtotal)
	assert.Equal(t, 10.79, cart.Tax)
	assert.Equal(t, 80.76, cart.Total)
}

func TestCartFeeOnlyWithItems(t *testing.T) {
	cart := NewCart(bson.NewObjectID())
	p := product("A", 100)
	cart.AddItem(p, 1, DefaultPricing)
	assert.Equal(t, 10.0, cart.PlatformFee)

	require.NoError(t, cart.RemoveItem(p.ID, DefaultPricing))
	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.PlatformFee)
	assert.Zero(t, cart.Total)
}

func TestCartSetQuantity(t *testing.T) {
	cart := NewCart(bson.NewObjectID())
	a, b := product("A", 500), product("B", 300)
	cart.AddItem(a, 2, DefaultPricing)
	cart.AddItem(b, 1, DefaultPricing)

	require.NoError(t, cart.SetQuantity(a.ID, 1, DefaultPricing))
	assert.Equal(t, 800.0, cart.Subtotal)
	assert.Equal(t, 954.0, cart.Total)

	require.NoError(t, cart.SetQuantity(b.ID, 0, DefaultPricing))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, a.ID, cart.Items[0].ProductID)

	assert.ErrorIs(t, cart.SetQuantity(bson.NewObjectID(), 4, DefaultPricing), ErrLineNotFound)
}

func TestCartTotalsInvariant(t *testing.T) {
	cart := NewCart(bson.NewObjectID())
	prices := []float64{0.01, 12.345, 99.99, 1000, 7.5}
	for i, price := range prices {
		cart.AddItem(product("p", price), i+1, DefaultPricing)

		assert.Equal(t, RoundMoney(cart.Subtotal*DefaultPricing.TaxRate), cart.Tax)
		assert.Equal(t, RoundMoney(cart.Subtotal+cart.Tax+cart.PlatformFee), cart.Total)
		assert.Equal(t, DefaultPricing.PlatformFee, cart.PlatformFee)
	}
}

func TestCartEmptyKeepsIdentity(t *testing.T) {
	buyer := bson.NewObjectID()
	cart := NewCart(buyer)
	cart.AddItem(product("A", 10), 1, DefaultPricing)
	cart.Empty()

	assert.Equal(t, buyer, cart.BuyerID)
	assert.True(t, cart.IsEmpty())
	assert.Zero(t, cart.Total)
	assert.Zero(t, cart.ItemCount)
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(154400), ToMinorUnits(1544))
	assert.Equal(t, int64(8076), ToMinorUnits(80.76))
	assert.Equal(t, int64(1), ToMinorUnits(0.01))
}
