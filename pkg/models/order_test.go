package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestCheckTransition(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     error
	}{
		{OrderPlaced, OrderConfirmed, nil},
		{OrderPlaced, OrderShipped, nil},
		{OrderConfirmed, OrderDelivered, nil},
		{OrderShipped, OrderDelivered, nil},
		{OrderPlaced, OrderCancelled, nil},
		{OrderShipped, OrderCancelled, nil},
		{OrderShipped, OrderConfirmed, ErrInvalidTransition},
		{OrderPlaced, OrderPlaced, ErrInvalidTransition},
		{OrderPlaced, OrderReturned, ErrInvalidTransition},
		{OrderPlaced, OrderStatus("lost"), ErrInvalidTransition},
		{OrderDelivered, OrderCancelled, ErrTerminalState},
		{OrderCancelled, OrderConfirmed, ErrTerminalState},
		{OrderRefunded, OrderShipped, ErrTerminalState},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTransition(tt.from, tt.to)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCanCancel(t *testing.T) {
	for _, s := range []OrderStatus{OrderPlaced, OrderConfirmed, OrderShipped} {
		assert.True(t, s.CanCancel(), s)
	}
	for _, s := range []OrderStatus{OrderDelivered, OrderCancelled, OrderReturned, OrderRefunded, "bogus"} {
		assert.False(t, s.CanCancel(), s)
	}
}

func TestNewOrderFromIntent(t *testing.T) {
	cart := NewCart(bson.NewObjectID())
	cart.AddItem(product("A", 500), 2, DefaultPricing)
	cart.AddItem(product("B", 300), 1, DefaultPricing)
	intent := NewPaymentIntent(cart, "order_ABC", "rcpt", "INR")
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	intent.Resolve(PaymentPaid, "pay_XYZ", "sig", at)

	order := NewOrderFromIntent(intent, "1 Main St", at)

	assert.Equal(t, 1544.0, order.TotalAmount)
	assert.Equal(t, 1300.0, order.Subtotal)
	assert.Equal(t, OrderPlaced, order.Status)
	assert.Equal(t, PaymentPaid, order.PaymentStatus)
	assert.Equal(t, intent.ID, order.PaymentIntentID)
	assert.Equal(t, "pay_XYZ", order.GatewayPaymentID)
	assert.Equal(t, 3, order.GetItemCount())
	assert.Equal(t, at, order.Timeline.PlacedAt)

	// the order's lines are a copy, not shared with the intent
	require.Len(t, order.Items, 2)
	intent.Items[0].Quantity = 99
	assert.Equal(t, 2, order.Items[0].Quantity)
}

func TestGenerateOrderNumber(t *testing.T) {
	at := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	a, b := GenerateOrderNumber(at), GenerateOrderNumber(at)

	assert.Regexp(t, regexp.MustCompile(`^ORD-20260102-[0-9A-F]{8}$`), a)
	assert.NotEqual(t, a, b)
}

func TestTimelineStamp(t *testing.T) {
	var tl Timeline
	at := time.Now()
	tl.Stamp(OrderShipped, at)
	tl.Stamp(OrderPlaced, at)

	require.NotNil(t, tl.ShippedAt)
	assert.Nil(t, tl.ConfirmedAt)
	assert.True(t, tl.PlacedAt.IsZero())
}
