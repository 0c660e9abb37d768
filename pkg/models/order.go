package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
	OrderReturned  OrderStatus = "returned"
	OrderRefunded  OrderStatus = "refunded"
)

var (
	ErrTerminalState     = errors.New("order is in a terminal state")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrCannotCancel      = errors.New("cannot cancel")
)

// fulfilment rank along placed -> confirmed -> shipped -> delivered
var forwardRank = map[OrderStatus]int{
	OrderPlaced:    0,
	OrderConfirmed: 1,
	OrderShipped:   2,
	OrderDelivered: 3,
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderPlaced, OrderConfirmed, OrderShipped, OrderDelivered,
		OrderCancelled, OrderReturned, OrderRefunded:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled, OrderReturned, OrderRefunded:
		return true
	}
	return false
}

// CanCancel reports whether a buyer may still cancel an order in this status.
func (s OrderStatus) CanCancel() bool {
	return s.IsValid() && !s.IsTerminal()
}

// CheckTransition validates a status change. Skipping ahead along the
// fulfilment path is allowed; moving backwards is not.
func CheckTransition(from, to OrderStatus) error {
	if from.IsTerminal() {
		return ErrTerminalState
	}
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	if to == OrderCancelled {
		return nil
	}
	fromRank, okFrom := forwardRank[from]
	toRank, okTo := forwardRank[to]
	if !okFrom || !okTo || toRank <= fromRank {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// OrderItem represents a single item in an order
type OrderItem struct {
	ProductID bson.ObjectID `json:"product_id" bson:"product_id"`
	SellerID  bson.ObjectID `json:"seller_id" bson:"seller_id"`
	Name      string        `json:"name" bson:"name"`
	Quantity  int           `json:"quantity" bson:"quantity"`
	UnitPrice float64       `json:"unit_price" bson:"unit_price"`
	Image     string        `json:"image" bson:"image,omitempty"`
	Subtotal  float64       `json:"subtotal" bson:"subtotal"`
}

// Timeline tracks the lifecycle of an order
type Timeline struct {
	PlacedAt    time.Time  `json:"placed_at" bson:"placed_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	ShippedAt   *time.Time `json:"shipped_at,omitempty" bson:"shipped_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty" bson:"delivered_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
}

// Stamp records when the order entered a status.
func (t *Timeline) Stamp(status OrderStatus, at time.Time) {
	switch status {
	case OrderConfirmed:
		t.ConfirmedAt = &at
	case OrderShipped:
		t.ShippedAt = &at
	case OrderDelivered:
		t.DeliveredAt = &at
	case OrderCancelled:
		t.CancelledAt = &at
	}
}

// Order is created once per settled payment intent. Monetary fields are
// fixed at creation; only the status and timeline move afterwards.
type Order struct {
	ID               bson.ObjectID `json:"id" bson:"_id,omitempty"`
	OrderNumber      string        `json:"order_number" bson:"order_number"`
	BuyerID          bson.ObjectID `json:"user_id" bson:"buyer_id"`
	Items            []OrderItem   `json:"items" bson:"items"`
	Subtotal         float64       `json:"subtotal" bson:"subtotal"`
	Tax              float64       `json:"tax" bson:"tax"`
	PlatformFee      float64       `json:"platform_fee" bson:"platform_fee"`
	TotalAmount      float64       `json:"total_amount" bson:"total_amount"`
	Currency         string        `json:"currency" bson:"currency"`
	PaymentStatus    PaymentStatus `json:"payment_status" bson:"payment_status"`
	Status           OrderStatus   `json:"order_status" bson:"order_status"`
	PaymentIntentID  bson.ObjectID `json:"payment_record_id" bson:"payment_intent_id"`
	GatewayOrderID   string        `json:"razorpay_order_id" bson:"gateway_order_id"`
	GatewayPaymentID string        `json:"razorpay_payment_id" bson:"gateway_payment_id"`
	GatewaySignature string        `json:"razorpay_signature" bson:"gateway_signature"`
	ShippingAddress  string        `json:"shipping_address" bson:"shipping_address"`
	Timeline         Timeline      `json:"timeline" bson:"timeline"`
	CreatedAt        time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" bson:"updated_at"`
}

type UpdateOrderStatusRequest struct {
	Status OrderStatus `json:"status" binding:"required"`
}

// NewOrderFromIntent builds the order for a paid intent from its frozen lines and totals.
func NewOrderFromIntent(intent *PaymentIntent, shippingAddress string, at time.Time) *Order {
	items := make([]OrderItem, len(intent.Items))
	copy(items, intent.Items)
	return &Order{
		ID:               bson.NewObjectID(),
		OrderNumber:      GenerateOrderNumber(at),
		BuyerID:          intent.BuyerID,
		Items:            items,
		Subtotal:         intent.Subtotal,
		Tax:              intent.Tax,
		PlatformFee:      intent.PlatformFee,
		TotalAmount:      intent.Amount,
		Currency:         intent.Currency,
		PaymentStatus:    PaymentPaid,
		Status:           OrderPlaced,
		PaymentIntentID:  intent.ID,
		GatewayOrderID:   intent.GatewayOrderID,
		GatewayPaymentID: intent.GatewayPaymentID,
		GatewaySignature: intent.GatewaySignature,
		ShippingAddress:  shippingAddress,
		Timeline:         Timeline{PlacedAt: at},
		CreatedAt:        at,
		UpdatedAt:        at,
	}
}

// HasSeller reports whether any line in the order was listed by the seller.
func (o *Order) HasSeller(sellerID bson.ObjectID) bool {
	for _, item := range o.Items {
		if item.SellerID == sellerID {
			return true
		}
	}
	return false
}

// GetItemCount returns the total number of items in the order
func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// GenerateOrderNumber formats ORD-YYYYMMDD-XXXXXXXX with a random suffix.
func GenerateOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("ORD-%s-%s", at.Format("20060102"), suffix)
}
