package models

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

type PaymentStatus string

const (
	PaymentCreated PaymentStatus = "created"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// IsOpen reports whether the intent may still transition to paid or failed.
func (s PaymentStatus) IsOpen() bool {
	return s == PaymentCreated || s == PaymentPending
}

func (s PaymentStatus) IsValid() bool {
	return s.IsOpen() || s == PaymentPaid || s == PaymentFailed
}

// PaymentIntent records one checkout attempt against a frozen copy of the cart.
type PaymentIntent struct {
	ID               bson.ObjectID  `json:"id" bson:"_id,omitempty"`
	BuyerID          bson.ObjectID  `json:"user_id" bson:"buyer_id"`
	GatewayOrderID   string         `json:"razorpay_order_id" bson:"gateway_order_id"`
	GatewayPaymentID string         `json:"razorpay_payment_id,omitempty" bson:"gateway_payment_id,omitempty"`
	GatewaySignature string         `json:"razorpay_signature,omitempty" bson:"gateway_signature,omitempty"`
	Receipt          string         `json:"receipt" bson:"receipt"`
	Amount           float64        `json:"amount" bson:"amount"`
	AmountMinor      int64          `json:"amount_minor" bson:"amount_minor"`
	Currency         string         `json:"currency" bson:"currency"`
	Status           PaymentStatus  `json:"status" bson:"status"`
	Items            []OrderItem    `json:"items" bson:"items"`
	Subtotal         float64        `json:"subtotal" bson:"subtotal"`
	Tax              float64        `json:"tax" bson:"tax"`
	PlatformFee      float64        `json:"platform_fee" bson:"platform_fee"`
	OrderID          *bson.ObjectID `json:"order_id,omitempty" bson:"order_id,omitempty"`
	CreatedAt        time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at" bson:"updated_at"`
	ResolvedAt       *time.Time     `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

type CreatePaymentRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type VerifyPaymentRequest struct {
	UserID            string `json:"user_id" binding:"required"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
	ShippingAddress   string `json:"shipping_address"`
}

// NewPaymentIntent freezes the cart's lines and totals. Amount is the grand total at this moment.
func NewPaymentIntent(cart *Cart, gatewayOrderID, receipt, currency string) *PaymentIntent {
	now := time.Now()
	return &PaymentIntent{
		ID:             bson.NewObjectID(),
		BuyerID:        cart.BuyerID,
		GatewayOrderID: gatewayOrderID,
		Receipt:        receipt,
		Amount:         cart.Total,
		AmountMinor:    ToMinorUnits(cart.Total),
		Currency:       currency,
		Status:         PaymentCreated,
		Items:          cart.Lines(),
		Subtotal:       cart.Subtotal,
		Tax:            cart.Tax,
		PlatformFee:    cart.PlatformFee,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Resolve applies the one-way transition locally, mirroring what the store persisted.
func (p *PaymentIntent) Resolve(status PaymentStatus, paymentID, signature string, at time.Time) {
	p.Status = status
	p.GatewayPaymentID = paymentID
	p.GatewaySignature = signature
	p.ResolvedAt = &at
	p.UpdatedAt = at
}
