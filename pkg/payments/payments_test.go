package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSignerKnownVectors(t *testing.T) {
	tests := []struct {
		secret, order, payment, want string
	}{
		{"test_secret", "order_9A33XWu170gUtm", "pay_29QQoUBi66xm2f",
			"a982c20f48234e966ccc8d903bff75730b34341007236ad8c8a9d7c0ae5848c5"},
		{"rzp_secret", "order_ABC", "pay_XYZ",
			"bb3ffcace981db76680e64d8c005845b9e2632673b061fa4d06765d5a3a7c469"},
	}
	for _, tt := range tests {
		s := NewSigner(tt.secret)
		assert.Equal(t, tt.want, s.Sign(tt.order, tt.payment))
		assert.True(t, s.Verify(tt.order, tt.payment, tt.want))
	}
}

func TestSignerRejects(t *testing.T) {
	s := NewSigner("rzp_secret")
	good := s.Sign("order_ABC", "pay_XYZ")

	assert.False(t, s.Verify("order_ABC", "pay_XYZ", ""))
	assert.False(t, s.Verify("order_ABC", "pay_OTHER", good))
	assert.False(t, s.Verify("order_ABC", "pay_XYZ", good[:len(good)-1]+"0"))
	assert.False(t, NewSigner("other").Verify("order_ABC", "pay_XYZ", good))
}

type stubOrders struct {
	body  map[string]interface{}
	err   error
	delay time.Duration
	got   map[string]interface{}
}

func (s *stubOrders) Create(data map[string]interface{}, _ map[string]string) (map[string]interface{}, error) {
	s.got = data
	time.Sleep(s.delay)
	return s.body, s.err
}

func newTestGateway(orders orderCreator, timeout time.Duration) *RazorpayGateway {
	return &RazorpayGateway{keyID: "rzp_test_key", orders: orders, timeout: timeout, logger: zap.NewNop()}
}

func TestRazorpayGatewayCreateOrder(t *testing.T) {
	stub := &stubOrders{body: map[string]interface{}{
		"id":       "order_ABC",
		"amount":   float64(154400),
		"currency": "INR",
		"receipt":  "rcpt_1",
		"status":   "created",
	}}
	gw := newTestGateway(stub, time.Second)

	order, err := gw.CreateOrder(context.Background(), OrderRequest{
		AmountMinor: 154400, Currency: "INR", Receipt: "rcpt_1",
		Notes: map[string]string{"buyer_id": "b1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_ABC", order.ID)
	assert.Equal(t, int64(154400), order.Amount)
	assert.Equal(t, "created", order.Status)
	assert.Equal(t, int64(154400), stub.got["amount"])
	assert.Equal(t, "rzp_test_key", gw.KeyID())
}

func TestRazorpayGatewayFailures(t *testing.T) {
	tests := []struct {
		name string
		stub *stubOrders
	}{
		{"sdk error", &stubOrders{err: errors.New("connection refused")}},
		{"no id in reply", &stubOrders{body: map[string]interface{}{"error": "bad"}}},
		{"timeout", &stubOrders{body: map[string]interface{}{"id": "order_late"}, delay: 200 * time.Millisecond}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := newTestGateway(tt.stub, 20*time.Millisecond)
			_, err := gw.CreateOrder(context.Background(), OrderRequest{AmountMinor: 100, Currency: "INR"})
			assert.ErrorIs(t, err, ErrGatewayUnavailable)
		})
	}
}

func TestRazorpayGatewayRejectsNonPositiveAmount(t *testing.T) {
	stub := &stubOrders{}
	gw := newTestGateway(stub, time.Second)

	_, err := gw.CreateOrder(context.Background(), OrderRequest{AmountMinor: 0, Currency: "INR"})
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.Nil(t, stub.got)
}
