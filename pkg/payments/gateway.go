package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	razorpay "github.com/razorpay/razorpay-go"
	"go.uber.org/zap"
)

// ErrGatewayUnavailable covers every way the gateway can fail to hand back
// an order: transport errors, rejections, malformed replies and timeouts.
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

type OrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the gateway's handle for one payment attempt.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error)
	KeyID() string
}

// orderCreator is the part of the Razorpay SDK the adapter needs.
type orderCreator interface {
	Create(data map[string]interface{}, extraHeaders map[string]string) (map[string]interface{}, error)
}

type RazorpayGateway struct {
	keyID   string
	orders  orderCreator
	timeout time.Duration
	logger  *zap.Logger
}

func NewRazorpayGateway(keyID, secret string, timeout time.Duration, logger *zap.Logger) *RazorpayGateway {
	client := razorpay.NewClient(keyID, secret)
	return &RazorpayGateway{keyID: keyID, orders: client.Order, timeout: timeout, logger: logger}
}

func (g *RazorpayGateway) KeyID() string {
	return g.keyID
}

type createResult struct {
	body map[string]interface{}
	err  error
}

// CreateOrder asks Razorpay for an order. The SDK call takes no context, so
// it runs on its own goroutine and the caller stops waiting at the deadline.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*GatewayOrder, error) {
	if req.AmountMinor <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrGatewayUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	notes := make(map[string]interface{}, len(req.Notes))
	for k, v := range req.Notes {
		notes[k] = v
	}
	data := map[string]interface{}{
		"amount":   req.AmountMinor,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    notes,
	}

	done := make(chan createResult, 1)
	go func() {
		body, err := g.orders.Create(data, nil)
		done <- createResult{body: body, err: err}
	}()

	select {
	case <-ctx.Done():
		g.logger.Warn("razorpay order create timed out",
			zap.String("receipt", req.Receipt),
			zap.Duration("timeout", g.timeout))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, ctx.Err())
	case res := <-done:
		if res.err != nil {
			g.logger.Error("razorpay order create failed", zap.String("receipt", req.Receipt), zap.Error(res.err))
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, res.err)
		}
		order, err := parseOrder(res.body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
		}
		return order, nil
	}
}

func parseOrder(body map[string]interface{}) (*GatewayOrder, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("response has no order id")
	}
	order := &GatewayOrder{ID: id}
	order.Currency, _ = body["currency"].(string)
	order.Receipt, _ = body["receipt"].(string)
	order.Status, _ = body["status"].(string)
	switch amount := body["amount"].(type) {
	case float64:
		order.Amount = int64(amount)
	case int64:
		order.Amount = amount
	case int:
		order.Amount = int64(amount)
	}
	return order, nil
}
